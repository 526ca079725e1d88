package workers

import (
	"context"
	"fmt"
	"log/slog"
	"quiz-lab/contract"
	"quiz-lab/domain"
	"quiz-lab/domain/event"
	"quiz-lab/errors"
	"quiz-lab/runtime"
	"sync"
	"time"
)

type Category string

const (
	CategoryFinished  Category = "finished"
	CategoryWaiting   Category = "waiting"
	CategoryCancelled Category = "cancelled"
	CategoryActive    Category = "active"
)

type WarningType string

const (
	WarningFirst WarningType = "first"
	WarningFinal WarningType = "final"
)

// SweeperConfig holds the thresholds of the cleanup sweep. A zero timeout
// disables its category. Warning fractions are fractions of the timeout
// that must have elapsed before the warning is sent.
type SweeperConfig struct {
	Interval             time.Duration
	FinishedTimeout      time.Duration
	WaitingTimeout       time.Duration
	CancelledTimeout     time.Duration
	ActiveTimeout        time.Duration
	FirstWarning         float64
	FinalWarning         float64
	MinRoomAge           time.Duration
	MaxDeletionsPerCycle int
	MaxWarningsPerCycle  int
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:             time.Minute,
		FinishedTimeout:      30 * time.Minute,
		WaitingTimeout:       60 * time.Minute,
		CancelledTimeout:     15 * time.Minute,
		ActiveTimeout:        120 * time.Minute,
		FirstWarning:         0.25,
		FinalWarning:         0.83,
		MinRoomAge:           5 * time.Minute,
		MaxDeletionsPerCycle: 50,
		MaxWarningsPerCycle:  200,
	}
}

func (c SweeperConfig) timeout(cat Category) time.Duration {
	switch cat {
	case CategoryFinished:
		return c.FinishedTimeout
	case CategoryWaiting:
		return c.WaitingTimeout
	case CategoryCancelled:
		return c.CancelledTimeout
	default:
		return c.ActiveTimeout
	}
}

// CategoryOf maps a room status onto its cleanup category.
func CategoryOf(s domain.Status) Category {
	switch s {
	case domain.StatusCompleted:
		return CategoryFinished
	case domain.StatusWaiting:
		return CategoryWaiting
	case domain.StatusStopped, domain.StatusAbandoned:
		return CategoryCancelled
	default:
		return CategoryActive
	}
}

type CleanupWarningPayload struct {
	Type             WarningType `json:"type"`
	Category         Category    `json:"category"`
	RemainingSeconds int         `json:"remainingSeconds"`
	DeleteAt         time.Time   `json:"deleteAt"`
}

type SweepReport struct {
	Scanned  int
	Warned   int
	Deleted  int
	Deferred int
	Failed   int
}

type warnState struct {
	category Category
	first    bool
	final    bool
}

type CleanupSweeper struct {
	log      *slog.Logger
	cfg      SweeperConfig
	clock    runtime.Clock
	rooms    contract.RoomLifecycle
	notifier contract.Notifier

	onSweep func(SweepReport)

	mu     sync.Mutex
	warned map[domain.RoomCode]warnState
}

func NewCleanupSweeper(log *slog.Logger, cfg SweeperConfig, clock runtime.Clock,
	rooms contract.RoomLifecycle, notifier contract.Notifier) *CleanupSweeper {
	return &CleanupSweeper{
		log:      log,
		cfg:      cfg,
		clock:    clock,
		rooms:    rooms,
		notifier: notifier,
		warned:   make(map[domain.RoomCode]warnState),
	}
}

func (w *CleanupSweeper) Run(ctx context.Context) error {
	w.log.Info("Starting cleanup sweeper", "interval", w.cfg.Interval)
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report := w.Sweep()
			if w.onSweep != nil {
				w.onSweep(report)
			}
			if report.Warned > 0 || report.Deleted > 0 || report.Failed > 0 {
				w.log.Info("Cleanup sweep done", "scanned", report.Scanned, "warned", report.Warned,
					"deleted", report.Deleted, "deferred", report.Deferred, "failed", report.Failed)
			}
		}
	}
}

// OnSweep registers fn to receive the report of every cycle run by Run.
func (w *CleanupSweeper) OnSweep(fn func(SweepReport)) {
	w.onSweep = fn
}

// Sweep runs one cleanup cycle over every live room.
func (w *CleanupSweeper) Sweep() SweepReport {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	snapshots := w.rooms.Snapshots()
	var report SweepReport
	seen := make(map[domain.RoomCode]struct{}, len(snapshots))

	for _, snap := range snapshots {
		seen[snap.Code] = struct{}{}
		report.Scanned++
		if err := w.sweepRoom(snap, now, &report); err != nil {
			report.Failed++
			w.log.Warn("Cleanup of room failed", "room", snap.Code, "error", err)
		}
	}
	for code := range w.warned {
		if _, ok := seen[code]; !ok {
			delete(w.warned, code)
		}
	}
	return report
}

func (w *CleanupSweeper) sweepRoom(snap domain.Snapshot, now time.Time, report *SweepReport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()

	cat := CategoryOf(snap.Status)
	timeout := w.cfg.timeout(cat)
	if timeout <= 0 {
		return nil
	}
	elapsed := now.Sub(snap.StateChangedAt)
	if cat == CategoryActive {
		elapsed = time.Duration(snap.IdleMs) * time.Millisecond
	}

	state := w.warned[snap.Code]
	if state.category != cat || elapsed < w.threshold(timeout, w.cfg.FirstWarning) {
		state = warnState{category: cat}
	}

	if elapsed >= timeout {
		if now.Sub(snap.CreatedAt) < w.cfg.MinRoomAge {
			w.warned[snap.Code] = state
			return nil
		}
		if w.cfg.MaxDeletionsPerCycle > 0 && report.Deleted >= w.cfg.MaxDeletionsPerCycle {
			report.Deferred++
			w.warned[snap.Code] = state
			return nil
		}
		deleted, err := w.rooms.Expire(snap.Code, snap.Generation, fmt.Sprintf("%s room expired", cat))
		if err != nil {
			return err
		}
		if deleted {
			report.Deleted++
			delete(w.warned, snap.Code)
			w.log.Info("Room expired", "room", snap.Code, "category", cat, "elapsed", elapsed)
		}
		return nil
	}

	var kind WarningType
	switch {
	case !state.final && elapsed >= w.threshold(timeout, w.cfg.FinalWarning):
		kind = WarningFinal
	case !state.first && !state.final && elapsed >= w.threshold(timeout, w.cfg.FirstWarning):
		kind = WarningFirst
	}
	if kind != "" && (w.cfg.MaxWarningsPerCycle <= 0 || report.Warned < w.cfg.MaxWarningsPerCycle) {
		remaining := timeout - elapsed
		w.notifier.Notify(snap.Code, event.CleanupWarning, CleanupWarningPayload{
			Type:             kind,
			Category:         cat,
			RemainingSeconds: int(remaining / time.Second),
			DeleteAt:         now.Add(remaining),
		})
		report.Warned++
		state.first = true
		state.final = state.final || kind == WarningFinal
	}
	w.warned[snap.Code] = state
	return nil
}

func (w *CleanupSweeper) threshold(timeout time.Duration, fraction float64) time.Duration {
	return time.Duration(float64(timeout) * fraction)
}

// Tracked returns how many rooms currently carry warning state.
func (w *CleanupSweeper) Tracked() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.warned)
}
