package loader

import (
	"context"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/tellusmaps/terrastream/tile"
)

const defaultWorkers = 4

// Fetcher produces the raw per-layer data for a tile. Implementations run
// on loader worker goroutines and must be safe for concurrent use.
//
// A failed fetch returns an error or a nil model; either way the absence of
// data is the failure state and the owning tile retries later.
type Fetcher interface {
	Fetch(ctx context.Context, key tile.Key, filter tile.LayerSet) (*tile.Model, error)
}

// Service is the streaming loader: a priority queue of pending tile-data
// requests serviced by a bounded pool of background workers. Completed
// results are never applied from worker goroutines; the owner drains them
// once per frame with MergeCompleted.
type Service struct {
	fetcher Fetcher
	workers int

	mutex sync.Mutex
	cond  *sync.Cond
	queue requestQueue
	seq   uint64

	completedMutex sync.Mutex
	completed      []*Request

	wg sync.WaitGroup
}

func NewService(fetcher Fetcher, workers int) *Service {
	if workers <= 0 {
		workers = defaultWorkers
	}
	s := &Service{
		fetcher: fetcher,
		workers: workers,
	}
	s.cond = sync.NewCond(&s.mutex)
	return s
}

// Start launches the worker pool. Workers stop when the context is
// canceled; Wait blocks until they have drained.
func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.work(ctx)
	}

	go func() {
		<-ctx.Done()
		s.cond.Broadcast()
	}()
}

func (s *Service) Wait() {
	s.wg.Wait()
}

// Load submits the request with the given priority. Fire and forget: the
// caller never blocks. Resubmitting a queued request only refreshes its
// priority; a running or completed request is left alone.
func (s *Service) Load(r *Request, priority float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	switch r.state {
	case stateIdle:
		r.state = stateQueued
		r.priority = priority
		r.sequence = s.seq
		s.seq++
		s.queue.push(r)
		instrumentQueueDepth(s.queue.Len())
		s.cond.Signal()

	case stateQueued:
		s.queue.reprioritize(r, priority)
	}
}

// LoadSync bypasses the queue and fetches inline, blocking the caller. It
// must not be used on the per-frame critical path.
func (s *Service) LoadSync(ctx context.Context, r *Request) (*tile.Model, error) {
	model, err := s.fetcher.Fetch(ctx, r.Key, r.Filter())
	if err != nil {
		return nil, errors.New("synchronous tile fetch failed").
			WithTag("key", r.Key.String()).
			Wrap(err)
	}
	return model, nil
}

// MergeCompleted hands every completed request to apply and returns how
// many were applied. It must be called from the traversal thread: apply
// mutates tile render models. Canceled requests are dropped.
func (s *Service) MergeCompleted(apply func(*Request, *tile.Model)) int {
	s.completedMutex.Lock()
	completed := s.completed
	s.completed = nil
	s.completedMutex.Unlock()

	applied := 0
	for _, r := range completed {
		canceled := r.Canceled()

		s.mutex.Lock()
		r.state = stateIdle
		s.mutex.Unlock()

		if canceled {
			instrumentCancel()
			continue
		}

		apply(r, r.result)
		r.result = nil
		applied++
	}
	return applied
}

// QueueLen returns the number of requests waiting for a worker.
func (s *Service) QueueLen() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.queue.Len()
}

func (s *Service) work(ctx context.Context) {
	defer s.wg.Done()

	for {
		r := s.next(ctx)
		if r == nil {
			return
		}
		s.invoke(ctx, r)
	}
}

// next blocks until a request is available or the context is canceled.
func (s *Service) next(ctx context.Context) *Request {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if r := s.queue.pop(); r != nil {
			instrumentQueueDepth(s.queue.Len())

			if r.Canceled() {
				r.state = stateIdle
				instrumentCancel()
				continue
			}

			r.state = stateRunning
			return r
		}

		s.cond.Wait()
	}
}

func (s *Service) invoke(ctx context.Context, r *Request) {
	model, err := s.fetcher.Fetch(ctx, r.Key, r.Filter())
	if err != nil {
		logs.WithTag("key", r.Key.String()).
			WithTag("request_id", r.ID).
			Debug(errors.New("tile fetch failed").Wrap(err))
		instrumentFetchError()
		model = nil
	}

	s.mutex.Lock()
	r.state = stateCompleted
	s.mutex.Unlock()

	r.result = model

	s.completedMutex.Lock()
	s.completed = append(s.completed, r)
	s.completedMutex.Unlock()

	instrumentDispatch()
}
