package services

import (
	"context"
	"time"

	"github.com/justsurfingit/resale-lister/internal/metrics"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SweeperService fails analyses that never finished, e.g. after a crash or a
// stream that hung without closing.
type SweeperService struct {
	Items      *ItemService
	StaleAfter time.Duration
	Schedule   string

	cron *cron.Cron
	log  *zap.Logger
}

func NewSweeperService(items *ItemService, staleAfter time.Duration, log *zap.Logger) *SweeperService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SweeperService{
		Items:      items,
		StaleAfter: staleAfter,
		Schedule:   "@every 1m",
		log:        log,
	}
}

// Start runs one sweep immediately and then on Schedule.
func (s *SweeperService) Start() error {
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(s.Schedule, s.Sweep); err != nil {
		return err
	}
	go s.Sweep()
	s.cron.Start()
	s.log.Info("stale analysis sweeper started", zap.String("schedule", s.Schedule), zap.Duration("stale_after", s.StaleAfter))
	return nil
}

// Stop halts the schedule; the returned context is done once a running sweep finishes.
func (s *SweeperService) Stop() context.Context {
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.cron.Stop()
}

func (s *SweeperService) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ids, err := s.Items.MarkStale(ctx, time.Now().Add(-s.StaleAfter))
	if err != nil {
		s.log.Error("sweep failed", zap.Error(err))
	}
	if len(ids) > 0 {
		metrics.StaleAnalyses.Add(float64(len(ids)))
		s.log.Warn("marked stale analyses as failed", zap.Uints("item_ids", ids))
	}
}
