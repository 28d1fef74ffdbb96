package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	apperrors "delta-strangler/internal/errors"
	"delta-strangler/internal/logging"
	"delta-strangler/internal/models"
	"delta-strangler/internal/notify"
	"delta-strangler/internal/store"
	"delta-strangler/pkg/utils"
)

// ExitConfig holds the exit phase settings.
type ExitConfig struct {
	SLMultiplier float64
	HardCapINR   float64
	SizeUnits    float64
	Location     *time.Location
}

// ExitDeps are the collaborators of the exit phase.
type ExitDeps struct {
	Evaluator *ExitRiskEvaluator
	Snapshots store.SnapshotStore
	Ledger    store.Ledger
	Notifier  notify.Notifier
	Clock     utils.Clock
}

// ExitOutcome reports the evaluated exit and its ledger row.
type ExitOutcome struct {
	Snapshot *models.EntrySnapshot
	Decision *models.ExitDecision
	Trade    *models.TradeRecord
}

// ExitPhase settles the dry-run strangle saved by the entry phase.
type ExitPhase struct {
	cfg    ExitConfig
	deps   ExitDeps
	logger zerolog.Logger
}

// NewExitPhase creates the exit phase.
func NewExitPhase(cfg ExitConfig, deps ExitDeps, logger zerolog.Logger) *ExitPhase {
	if cfg.Location == nil {
		cfg.Location = utils.IndiaLocation
	}
	return &ExitPhase{
		cfg:    cfg,
		deps:   deps,
		logger: logging.WithPhase(logger, "exit"),
	}
}

// Run evaluates today's snapshot and records the trade. It returns
// errors.ErrNoSnapshot when nothing was entered and errors.ErrStaleSnapshot
// when the snapshot belongs to another day; a stale snapshot is discarded
// without a ledger row.
func (p *ExitPhase) Run(ctx context.Context) (*ExitOutcome, error) {
	snap, err := p.deps.Snapshots.Load()
	if err != nil {
		return nil, err
	}

	now := p.deps.Clock.Now().In(p.cfg.Location)
	if snap.IsStaleOn(now) {
		p.logger.Warn().
			Str("snapshot_date", snap.Date).
			Str("today", now.Format(models.DateLayout)).
			Msg("Discarding stale entry snapshot")
		if err := p.deps.Snapshots.Delete(); err != nil {
			return nil, fmt.Errorf("failed to delete stale snapshot: %w", err)
		}
		return nil, fmt.Errorf("%w: entered on %s", apperrors.ErrStaleSnapshot, snap.Date)
	}

	p.logger.Info().
		Str("call", snap.CallSymbol).
		Str("put", snap.PutSymbol).
		Str("entry_time", snap.EntryTime).
		Float64("entry_combined", snap.EntryCombinedPremium).
		Msg("Exit phase started")

	decision, err := p.deps.Evaluator.EvaluateExitRisk(ctx, snap, p.cfg.SLMultiplier, p.cfg.HardCapINR)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate exit: %w", err)
	}
	for _, w := range decision.Warnings {
		p.logger.Warn().Str("warning", w).Msg("Manual review required")
	}

	trade, err := RecordTrade(ctx, snap, decision, p.cfg.SizeUnits, p.cfg.Location, p.deps.Ledger, p.deps.Snapshots, p.deps.Notifier, p.logger)
	if err != nil {
		return nil, err
	}
	return &ExitOutcome{Snapshot: snap, Decision: decision, Trade: trade}, nil
}
