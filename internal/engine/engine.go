// Package engine owns the single live MetricsState and serializes every
// read-modify-write on it.
package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"vectorquant/internal/domain"
	"vectorquant/internal/observability"
)

// Stepper advances a state by one tick.
type Stepper interface {
	Tick(s domain.MetricsState) domain.MetricsState
}

// Evaluator derives alerts from a snapshot.
type Evaluator interface {
	Evaluate(snap domain.Snapshot) []domain.Alert
}

// TickObserver is notified after every tick, outside the lock.
// Implementations must not block.
type TickObserver interface {
	ObserveTick(snap domain.Snapshot)
}

// AlertObserver is notified after every alert evaluation, outside the lock.
// Implementations must not block.
type AlertObserver interface {
	ObserveAlerts(snap domain.Snapshot, alerts []domain.Alert)
}

// Options configures an Engine.
type Options struct {
	Stepper   Stepper
	Evaluator Evaluator
	Initial   *domain.MetricsState // nil means domain.Initial()
	Clock     func() time.Time     // nil means time.Now
	Logger    *zap.Logger          // nil means zap.NewNop()
}

// Engine guards the live state with one mutex. Each tick and each control
// update is a single critical section; observers run after unlock.
type Engine struct {
	stepper   Stepper
	evaluator Evaluator
	clock     func() time.Time
	logger    *zap.Logger

	mu    sync.Mutex
	state domain.MetricsState
	ticks uint64

	obsMu          sync.RWMutex
	tickObservers  []TickObserver
	alertObservers []AlertObserver
}

// New creates an engine from opts.
func New(opts Options) *Engine {
	e := &Engine{
		stepper:   opts.Stepper,
		evaluator: opts.Evaluator,
		clock:     opts.Clock,
		logger:    opts.Logger,
		state:     domain.Initial(),
	}
	if opts.Initial != nil {
		e.state = *opts.Initial
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("engine")
	return e
}

// OnTick registers a tick observer.
func (e *Engine) OnTick(o TickObserver) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.tickObservers = append(e.tickObservers, o)
}

// OnAlerts registers an alert observer.
func (e *Engine) OnAlerts(o AlertObserver) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.alertObservers = append(e.alertObservers, o)
}

// Tick advances the live state by one step and returns the new snapshot.
// Concurrent ticks may reach observers out of order; observers that care
// compare Snapshot.Seq.
func (e *Engine) Tick() domain.Snapshot {
	start := time.Now()

	e.mu.Lock()
	e.state = e.stepper.Tick(e.state)
	e.ticks++
	snap := domain.Snapshot{State: e.state, Taken: e.clock(), Seq: e.ticks}
	e.mu.Unlock()

	observability.RecordTick(time.Since(start).Seconds(), snap.State.PnL, snap.Seconds())

	e.obsMu.RLock()
	observers := e.tickObservers
	e.obsMu.RUnlock()
	for _, o := range observers {
		o.ObserveTick(snap)
	}
	return snap
}

// Snapshot returns a copy of the current state without advancing it.
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.Snapshot{State: e.state, Taken: e.clock(), Seq: e.ticks}
}

// Ticks returns the number of ticks applied since the engine was created.
func (e *Engine) Ticks() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

// ApplyControls overwrites the control fields and returns the resulting
// snapshot. An invalid mode leaves the state untouched.
func (e *Engine) ApplyControls(c domain.Controls) (domain.Snapshot, error) {
	e.mu.Lock()
	err := e.state.ApplyControls(c)
	snap := domain.Snapshot{State: e.state, Taken: e.clock(), Seq: e.ticks}
	e.mu.Unlock()

	observability.RecordControlUpdate(err)
	if err != nil {
		return snap, err
	}

	e.logger.Info("controls updated",
		zap.String("mode", c.Mode.String()),
		zap.Float64("risk_limit", c.RiskLimit),
		zap.Float64("temperature", c.Temperature),
	)
	return snap, nil
}

// Alerts evaluates the current state without ticking.
func (e *Engine) Alerts() (domain.Snapshot, []domain.Alert) {
	snap := e.Snapshot()
	alerts := e.evaluator.Evaluate(snap)

	for _, a := range alerts {
		observability.RecordAlert(string(a.Kind), string(a.Severity))
	}

	e.obsMu.RLock()
	observers := e.alertObservers
	e.obsMu.RUnlock()
	for _, o := range observers {
		o.ObserveAlerts(snap, alerts)
	}
	return snap, alerts
}

// Restore replaces the live state wholesale. Used for warm restarts.
func (e *Engine) Restore(s domain.MetricsState) error {
	if !s.Mode.IsValid() {
		return domain.ErrInvalidMode
	}
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	return nil
}
