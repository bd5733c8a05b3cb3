package knowledge

import (
	"context"
	"time"

	"github.com/gorhill/cronexpr"
)

// StartRefresh reloads the knowledge base on the given cron schedule until
// ctx is cancelled. Supports standard cron expressions plus "@hourly" and
// "@daily". An empty or invalid spec disables refresh.
func (s *Service) StartRefresh(ctx context.Context, cronSpec string) {
	if cronSpec == "" {
		return
	}
	expr, err := cronexpr.Parse(cronSpec)
	if err != nil {
		s.logger.Printf("invalid refresh schedule %q, refresh disabled: %v", cronSpec, err)
		return
	}
	go s.refreshLoop(ctx, expr)
}

func (s *Service) refreshLoop(ctx context.Context, expr *cronexpr.Expression) {
	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := s.Reload(); err != nil {
			s.logger.Printf("scheduled reload failed: %v", err)
		}
	}
}
