// Package sweeper finalizes vaults whose lock period has ended. It is
// poll-based: every tick lists the due vaults and finalizes each one exactly
// once, so redundant or retried ticks are harmless.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"yieldlock/internal/util"

	"golang.org/x/sync/errgroup"
)

// Finalizer is the part of the vault service the sweeper drives.
type Finalizer interface {
	ListMaturityCandidates(ctx context.Context, now time.Time) ([]int64, error)
	FinalizeMaturity(ctx context.Context, id int64, now time.Time) (bool, error)
}

// Config tunes the sweep loop.
type Config struct {
	Interval time.Duration // time between ticks
	Workers  int           // vaults finalized concurrently per tick
	LeaseTTL time.Duration // upper bound on one tick when the lease is shared
}

// Result counts what one PerformWork call did.
type Result struct {
	Candidates int `json:"candidates"`
	Finalized  int `json:"finalized"`
	Skipped    int `json:"skipped"` // finalized or withdrawn by someone else meanwhile
	Failed     int `json:"failed"`
}

// Sweeper runs maturity finalization.
type Sweeper struct {
	finalizer Finalizer
	lease     Lease
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Sweeper. A nil lease means a process-local one.
func New(finalizer Finalizer, lease Lease, cfg Config, logger *slog.Logger) *Sweeper {
	if lease == nil {
		lease = &LocalLease{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 5 * cfg.Interval
	}
	if logger == nil {
		logger = util.GetLogger()
	}
	return &Sweeper{
		finalizer: finalizer,
		lease:     lease,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// NeedsWork reports whether at least one vault is due for finalization at now.
func (s *Sweeper) NeedsWork(ctx context.Context, now time.Time) (bool, error) {
	ids, err := s.finalizer.ListMaturityCandidates(ctx, now)
	if err != nil {
		return false, fmt.Errorf("needs work: %w", err)
	}
	return len(ids) > 0, nil
}

// PerformWork finalizes every vault due at now. Errors of single vaults are
// logged and counted; only a failure to list candidates is returned.
func (s *Sweeper) PerformWork(ctx context.Context, now time.Time) (Result, error) {
	ids, err := s.finalizer.ListMaturityCandidates(ctx, now)
	if err != nil {
		return Result{}, fmt.Errorf("perform work: %w", err)
	}

	var finalized, skipped, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, id := range ids {
		g.Go(func() error {
			ok, err := s.finalizer.FinalizeMaturity(ctx, id, now)
			switch {
			case err != nil:
				failed.Add(1)
				s.logger.ErrorContext(ctx, "Failed to finalize vault", "vault_id", id, "error", err)
			case ok:
				finalized.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Candidates: len(ids),
		Finalized:  int(finalized.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
	if res.Candidates > 0 {
		s.logger.InfoContext(ctx, "Maturity sweep finished",
			"candidates", res.Candidates, "finalized", res.Finalized, "skipped", res.Skipped, "failed", res.Failed)
	}
	return res, nil
}

// Tick runs PerformWork under the lease. ran is false when another tick held it.
func (s *Sweeper) Tick(ctx context.Context) (res Result, ran bool, err error) {
	release, ok, err := s.lease.Acquire(ctx, s.cfg.LeaseTTL)
	if err != nil {
		return Result{}, false, err
	}
	if !ok {
		s.logger.DebugContext(ctx, "Sweep lease held elsewhere, skipping tick")
		return Result{}, false, nil
	}
	defer release()

	res, err = s.PerformWork(ctx, s.now())
	return res, true, err
}

// Run ticks every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "Maturity sweeper started", "interval", s.cfg.Interval.String(), "workers", s.cfg.Workers)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Maturity sweeper stopped")
			return nil
		case <-ticker.C:
			if _, _, err := s.Tick(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Maturity sweep tick failed", "error", err)
			}
		}
	}
}
