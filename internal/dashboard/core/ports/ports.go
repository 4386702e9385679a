package ports

import (
	"context"
	"time"

	"dashboard-refresher/internal/dashboard/core/domain"
)

// TemplateStorePort reads the dashboard template and publishes the merged
// document.
type TemplateStorePort interface {
	ReadTemplate(ctx context.Context) (string, error)
	WriteOutput(ctx context.Context, doc string) error
}

// NotifierPort announces the outcome of a refresh.
type NotifierPort interface {
	Notify(ctx context.Context, r *domain.Report) error
}

// RefreshObserver records refresh outcomes for metrics.
type RefreshObserver interface {
	RefreshFinished(d time.Duration, degradations int, err error)
}
