package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/slateos/backend/internal/infrastructure/logging"
	"github.com/slateos/backend/internal/infrastructure/monitoring"
	"github.com/slateos/backend/internal/infrastructure/resilience"
	"github.com/slateos/backend/internal/shared/types"
)

// ErrSaverClosed is returned when a save is enqueued after shutdown.
var ErrSaverClosed = errors.New("snapshot saver is closed")

// ErrQueueFull is returned when the save queue cannot accept more work.
var ErrQueueFull = errors.New("snapshot save queue is full")

// By the time the worker picks a job up the runtime is already torn down,
// so a failed write is retried in place before the snapshot is dropped.
const (
	saveAttempts   = 3
	saveRetryDelay = 100 * time.Millisecond
)

type saveJob struct {
	contextID string
	snap      *types.Snapshot
}

// Saver runs durable snapshot writes asynchronously. Callers enqueue and
// move on; eviction only requires a successful enqueue before teardown.
// Saves flow through a circuit breaker so a failing store degrades fast
// instead of wedging the worker.
type Saver struct {
	gateway Gateway
	breaker *resilience.Breaker
	logger  *logging.Logger
	metrics *monitoring.Metrics

	jobs chan saveJob
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewSaver creates and starts a saver with the given queue size
func NewSaver(gateway Gateway, queueSize int, logger *logging.Logger) *Saver {
	if logger == nil {
		logger = logging.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	s := &Saver{
		gateway: gateway,
		logger:  logger.Named("saver"),
		jobs:    make(chan saveJob, queueSize),
	}
	s.breaker = resilience.New("snapshot-gateway", resilience.Settings{
		Timeout: 15 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			s.logger.Warn("gateway breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	s.wg.Add(1)
	go s.run()

	return s
}

// WithMetrics adds metrics tracking to the saver
func (s *Saver) WithMetrics(m *monitoring.Metrics) *Saver {
	s.metrics = m
	return s
}

// Enqueue accepts a snapshot for asynchronous durable write. Fails only
// when the queue is full or the saver is shut down; a failed enqueue must
// abort any teardown that depends on it.
func (s *Saver) Enqueue(contextID string, snap *types.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSaverClosed
	}

	select {
	case s.jobs <- saveJob{contextID: contextID, snap: snap}:
		return nil
	default:
		return ErrQueueFull
	}
}

// SaveSync writes a snapshot through the breaker, blocking the caller
func (s *Saver) SaveSync(ctx context.Context, contextID string, snap *types.Snapshot) error {
	return s.save(ctx, contextID, snap)
}

// Close drains pending saves and stops the worker
func (s *Saver) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Saver) run() {
	defer s.wg.Done()

	for job := range s.jobs {
		if err := s.saveWithRetry(job); err != nil {
			s.logger.Error("durable snapshot save failed, snapshot dropped",
				zap.String("context_id", job.contextID),
				zap.Uint64("revision", job.snap.Revision),
				zap.Int("attempts", saveAttempts),
				zap.Error(err),
			)
			continue
		}
		s.logger.Debug("snapshot persisted",
			zap.String("context_id", job.contextID),
			zap.Uint64("revision", job.snap.Revision),
		)
	}
}

func (s *Saver) saveWithRetry(job saveJob) error {
	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		err = s.save(context.Background(), job.contextID, job.snap)
		if err == nil {
			return nil
		}
		if errors.Is(err, resilience.ErrCircuitOpen) {
			// The breaker rejects until its timeout elapses; a delayed
			// retry within this loop cannot outwait it.
			return err
		}
		if attempt < saveAttempts {
			s.logger.Warn("durable snapshot save failed, retrying",
				zap.String("context_id", job.contextID),
				zap.Uint64("revision", job.snap.Revision),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			time.Sleep(saveRetryDelay)
		}
	}
	return err
}

func (s *Saver) save(ctx context.Context, contextID string, snap *types.Snapshot) error {
	start := time.Now()
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.gateway.Save(ctx, contextID, snap)
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncGatewayError("save")
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveSave(time.Since(start))
	}
	return nil
}
