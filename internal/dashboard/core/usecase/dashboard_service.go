package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"dashboard-refresher/internal/dashboard/core/domain"
	"dashboard-refresher/internal/dashboard/core/ports"
)

type Refresher interface {
	Execute(ctx context.Context) (*domain.Payload, *domain.Report, error)
}

// DashboardService runs refreshes one at a time, publishes the merged
// document and keeps the latest payload and report for the HTTP adapter.
type DashboardService struct {
	refresher Refresher
	store     ports.TemplateStorePort
	merger    Merger
	notifier  ports.NotifierPort    // optional
	observer  ports.RefreshObserver // optional
	logger    *zap.Logger

	running sync.Mutex

	mu      sync.RWMutex
	payload *domain.Payload
	report  *domain.Report
}

type ServiceOption func(*DashboardService)

func WithNotifier(n ports.NotifierPort) ServiceOption {
	return func(s *DashboardService) { s.notifier = n }
}

func WithRefreshObserver(o ports.RefreshObserver) ServiceOption {
	return func(s *DashboardService) { s.observer = o }
}

func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *DashboardService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewDashboardService(r Refresher, store ports.TemplateStorePort, m Merger, opts ...ServiceOption) *DashboardService {
	s := &DashboardService{refresher: r, store: store, merger: m, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh runs one refresh and publishes the result. It returns
// domain.ErrRefreshInProgress when another refresh holds the lock.
func (s *DashboardService) Refresh(ctx context.Context) (*domain.Report, error) {
	if !s.running.TryLock() {
		return nil, domain.ErrRefreshInProgress
	}
	defer s.running.Unlock()

	payload, report, err := s.refresher.Execute(ctx)
	if err == nil {
		err = s.publish(ctx, payload)
		if err != nil {
			report.Error = err.Error()
		}
	}

	s.mu.Lock()
	s.report = report
	if err == nil {
		s.payload = payload
	}
	s.mu.Unlock()

	if s.observer != nil && report != nil {
		d := report.FinishedAt.Sub(report.StartedAt)
		s.observer.RefreshFinished(d, len(report.Degradations), err)
	}
	if s.notifier != nil && report != nil {
		if nerr := s.notifier.Notify(ctx, report); nerr != nil {
			s.logger.Warn("refresh notification failed", zap.Error(nerr))
		}
	}
	return report, err
}

func (s *DashboardService) publish(ctx context.Context, p *domain.Payload) error {
	tmpl, err := s.store.ReadTemplate(ctx)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	doc := s.merger.Merge(tmpl, p)
	if err := s.store.WriteOutput(ctx, doc); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	s.logger.Info("dashboard written", zap.Int("bytes", len(doc)))
	return nil
}

// Remerge publishes the latest payload again, e.g. after the template
// changed. Without a payload it is a no-op.
func (s *DashboardService) Remerge(ctx context.Context) error {
	p, err := s.Latest()
	if errors.Is(err, domain.ErrNoPayload) {
		return nil
	}
	return s.publish(ctx, p)
}

func (s *DashboardService) Latest() (*domain.Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.payload == nil {
		return nil, domain.ErrNoPayload
	}
	return s.payload, nil
}

func (s *DashboardService) LastReport() (*domain.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report, s.report != nil
}

// Scheduler calls run immediately and then every interval until ctx is done.
type Scheduler struct {
	Interval time.Duration
	Run      func(ctx context.Context)
	Logger   *zap.Logger
}

func (s Scheduler) Start(ctx context.Context) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("refresh scheduler started", zap.Duration("interval", s.Interval))

	s.Run(ctx)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("refresh scheduler stopped")
			return
		case <-ticker.C:
			s.Run(ctx)
		}
	}
}
