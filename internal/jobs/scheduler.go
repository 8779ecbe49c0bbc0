package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"smartclinic/api/internal/config"
	"smartclinic/api/internal/service"
)

// AuditPruner is the retention side of the audit log.
type AuditPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler runs the periodic maintenance this service owns: flipping overdue
// appointments to no_show and pruning aged audit entries.
type Scheduler struct {
	cron         *cron.Cron
	appointments *service.AppointmentService
	audit        AuditPruner
	cfg          config.JobsConfig
	log          zerolog.Logger
}

func NewScheduler(appointments *service.AppointmentService, audit AuditPruner, cfg config.JobsConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		appointments: appointments,
		audit:        audit,
		cfg:          cfg,
		log:          log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("15 0 * * *", s.sweepNoShows); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("45 0 * * *", s.pruneAuditLogs); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) sweepNoShows() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.appointments.SweepNoShows(ctx, s.cfg.NoShowGrace); err != nil {
		s.log.Error().Err(err).Msg("no-show sweep failed")
	}
}

func (s *Scheduler) pruneAuditLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.cfg.AuditRetention)
	n, err := s.audit.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("audit prune failed")
		return
	}
	if n > 0 {
		s.log.Info().Int64("count", n).Msg("pruned audit entries")
	}
}
