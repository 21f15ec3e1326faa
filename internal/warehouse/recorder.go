package warehouse

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"vectorquant/internal/domain"
	"vectorquant/internal/observability"
	"vectorquant/internal/storage"
)

// Table names used for metrics labels.
const (
	TablePrices  = "crypto_prices"
	TableMetrics = "trading_metrics"
	TableAlerts  = "alerts"
)

// DefaultQueueSize bounds the number of pending writes.
const DefaultQueueSize = 256

// Stores groups the warehouse stores a Recorder writes to.
type Stores struct {
	Prices  storage.PriceStore
	Metrics storage.MetricStore
	Alerts  storage.AlertStore
}

type job struct {
	snap   domain.Snapshot
	alerts []domain.Alert // nil for tick jobs
}

// Recorder persists ticks and alert evaluations off the request path.
// Observe* methods never block: when the queue is full the job is dropped
// and counted.
type Recorder struct {
	stores Stores
	guard  *Guard
	logger *zap.Logger
	queue  chan job

	mu      sync.Mutex
	running bool
}

// NewRecorder creates a recorder with a queue of queueSize pending jobs.
func NewRecorder(stores Stores, guard *Guard, queueSize int, logger *zap.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		stores: stores,
		guard:  guard,
		logger: logger.Named("recorder"),
		queue:  make(chan job, queueSize),
	}
}

// ObserveTick enqueues the snapshot's price and metric rows.
func (r *Recorder) ObserveTick(snap domain.Snapshot) {
	r.enqueue(job{snap: snap})
}

// ObserveAlerts enqueues one alert row per alert. Empty evaluations are skipped.
func (r *Recorder) ObserveAlerts(snap domain.Snapshot, alerts []domain.Alert) {
	if len(alerts) == 0 {
		return
	}
	r.enqueue(job{snap: snap, alerts: alerts})
}

func (r *Recorder) enqueue(j job) {
	select {
	case r.queue <- j:
		observability.UpdateWarehouseQueue(len(r.queue))
	default:
		observability.RecordWarehouseDropped()
		r.logger.Debug("recorder queue full, dropping job")
	}
}

// Run consumes the queue until ctx is cancelled, then drains what is left
// with a short grace period.
func (r *Recorder) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			r.drain()
			return nil
		case j := <-r.queue:
			observability.UpdateWarehouseQueue(len(r.queue))
			r.write(ctx, j)
		}
	}
}

func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case j := <-r.queue:
			r.write(ctx, j)
		default:
			observability.UpdateWarehouseQueue(0)
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, j job) {
	if j.alerts != nil {
		rows := make([]*domain.AlertRecord, 0, len(j.alerts))
		for _, a := range j.alerts {
			rows = append(rows, a.Record())
		}
		r.do(ctx, TableAlerts, func(ctx context.Context) error {
			return r.stores.Alerts.InsertBulk(ctx, rows)
		})
		return
	}

	r.do(ctx, TablePrices, func(ctx context.Context) error {
		return r.stores.Prices.InsertBulk(ctx, j.snap.Prices())
	})
	r.do(ctx, TableMetrics, func(ctx context.Context) error {
		return r.stores.Metrics.InsertBulk(ctx, j.snap.Metrics())
	})
}

func (r *Recorder) do(ctx context.Context, table string, fn func(ctx context.Context) error) {
	err := r.guard.Do(ctx, fn)
	observability.RecordWarehouseWrite(table, err)
	if err != nil {
		r.logger.Warn("warehouse write failed", zap.String("table", table), zap.Error(err))
	}
}
