package ports

import (
	"context"
	"time"

	"dashboard-refresher/internal/stats/core/domain"
)

// IdentitySourcePort yields already-normalized identity rows.
type IdentitySourcePort interface {
	ActiveMemberships(ctx context.Context) ([]domain.Membership, error)
	FirstAppearances(ctx context.Context, start, today time.Time) ([]domain.FirstAppearance, error)
}
