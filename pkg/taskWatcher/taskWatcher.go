// Package taskWatcher polls the task list and reports status changes. Each
// change is checked against the task status graph; an edge the graph does
// not allow is still reported, flagged as invalid.
package taskWatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dandelion-network/taskctl/pkg/contractService"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const enqueueTimeout = 100 * time.Millisecond

type Config struct {
	PollingInterval time.Duration
	// TaskIds limits the watch to the given tasks; empty watches all.
	TaskIds []uint64
}

func DefaultConfig() *Config {
	return &Config{PollingInterval: 5 * time.Second}
}

// TaskReader reloads every task, bypassing any cache.
type TaskReader interface {
	Refresh(ctx context.Context) ([]*types.Task, error)
}

type Transition struct {
	TaskId uint64           `json:"taskId"`
	From   types.TaskStatus `json:"from"`
	To     types.TaskStatus `json:"to"`
	// New is set for a task first seen after the initial poll; From is then zero.
	New        bool      `json:"new,omitempty"`
	Valid      bool      `json:"valid"`
	ObservedAt time.Time `json:"observedAt"`
}

func (t *Transition) String() string {
	if t.New {
		return fmt.Sprintf("task %d created as %s", t.TaskId, t.To)
	}
	return fmt.Sprintf("task %d %s -> %s", t.TaskId, t.From, t.To)
}

type TaskWatcher struct {
	config  *Config
	reader  TaskReader
	sink    chan<- *Transition
	logger  *zap.Logger
	metrics *prometheus.CounterVec

	mu     sync.Mutex
	last   map[uint64]types.TaskStatus
	primed bool
	filter map[uint64]struct{}
}

func NewTaskWatcher(cfg *Config, reader TaskReader, sink chan<- *Transition, logger *zap.Logger) (*TaskWatcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.PollingInterval <= 0 {
		return nil, fmt.Errorf("polling interval must be positive")
	}

	w := &TaskWatcher{
		config: cfg,
		reader: reader,
		sink:   sink,
		logger: logger,
		last:   map[uint64]types.TaskStatus{},
	}
	if len(cfg.TaskIds) > 0 {
		w.filter = make(map[uint64]struct{}, len(cfg.TaskIds))
		for _, id := range cfg.TaskIds {
			w.filter[id] = struct{}{}
		}
	}
	return w, nil
}

// RegisterMetrics counts observed transitions by validity.
func (w *TaskWatcher) RegisterMetrics(reg prometheus.Registerer) {
	w.metrics = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskctl",
		Subsystem: "watcher",
		Name:      "transitions_total",
		Help:      "Task status transitions observed by the watcher.",
	}, []string{"valid"})
	reg.MustRegister(w.metrics)
}

// Run polls until ctx is cancelled. A failed poll is logged and retried on
// the next tick.
func (w *TaskWatcher) Run(ctx context.Context) error {
	w.logger.Sugar().Infow("Starting task watcher",
		zap.Duration("pollingInterval", w.config.PollingInterval),
		zap.Int("filteredTasks", len(w.filter)),
	)

	if _, err := w.Poll(ctx); err != nil && ctx.Err() == nil {
		w.logger.Sugar().Warnw("Initial task poll failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.config.PollingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Sugar().Infow("Task watcher context cancelled, exiting poll loop")
			return nil
		case <-ticker.C:
			if _, err := w.Poll(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Sugar().Warnw("Task poll failed", zap.Error(err))
			}
		}
	}
}

// Poll reloads the tasks once and emits every change since the previous
// poll. The first poll only records a baseline.
func (w *TaskWatcher) Poll(ctx context.Context) ([]*Transition, error) {
	tasks, err := w.reader.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	w.mu.Lock()
	var changes []*Transition
	for _, t := range tasks {
		if w.filter != nil {
			if _, ok := w.filter[t.Id]; !ok {
				continue
			}
		}
		prev, seen := w.last[t.Id]
		w.last[t.Id] = t.Status
		switch {
		case !seen && w.primed:
			changes = append(changes, &Transition{TaskId: t.Id, To: t.Status, New: true, Valid: true, ObservedAt: now})
		case seen && prev != t.Status:
			changes = append(changes, &Transition{
				TaskId:     t.Id,
				From:       prev,
				To:         t.Status,
				Valid:      contractService.ValidTransition(prev, t.Status),
				ObservedAt: now,
			})
		}
	}
	w.primed = true
	w.mu.Unlock()

	for _, c := range changes {
		w.emit(ctx, c)
	}
	return changes, nil
}

func (w *TaskWatcher) emit(ctx context.Context, t *Transition) {
	if !t.Valid {
		w.logger.Sugar().Warnw("Observed disallowed task transition",
			zap.Uint64("taskId", t.TaskId),
			zap.String("from", t.From.String()),
			zap.String("to", t.To.String()),
		)
	} else {
		w.logger.Sugar().Infow("Task status changed",
			zap.Uint64("taskId", t.TaskId),
			zap.String("from", t.From.String()),
			zap.String("to", t.To.String()),
			zap.Bool("new", t.New),
		)
	}
	if w.metrics != nil {
		w.metrics.WithLabelValues(fmt.Sprint(t.Valid)).Inc()
	}

	select {
	case w.sink <- t:
	case <-ctx.Done():
	case <-time.After(enqueueTimeout):
		w.logger.Sugar().Warnw("Failed to enqueue transition (channel full)",
			zap.Uint64("taskId", t.TaskId),
		)
	}
}
