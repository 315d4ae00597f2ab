package story

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// purgeTimeout bounds one scheduled purge run.
const purgeTimeout = time.Minute

// SchedulePurge runs Purge on the given cron spec ("@every 10m", "0 * * * *").
// Runs never overlap. The caller stops the returned scheduler on shutdown.
func (s *Service) SchedulePurge(spec string) (*cron.Cron, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	if _, err := c.AddFunc(spec, s.runScheduledPurge); err != nil {
		return nil, fmt.Errorf("schedule purge %q: %w", spec, err)
	}

	c.Start()
	s.logger.Info("story purge scheduled", slog.String("schedule", spec))
	return c, nil
}

func (s *Service) runScheduledPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	if _, err := s.Purge(ctx); err != nil {
		s.logger.Error("scheduled purge failed", slog.String("error", err.Error()))
	}
}
