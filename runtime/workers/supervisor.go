package workers

import (
	"chat-live/contract"
	"chat-live/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Supervisor Own a context and a Cancel function
// Run each worker in a goroutine
// Check panics and errors
// Restart workers automatically
// Shutdown properly if parent context is canceled
// Wait for the end of all goroutines via WaitGroup
type Supervisor struct {
	mu              sync.Mutex
	ctx             context.Context
	cancel          context.CancelFunc // To stop the context
	closed          bool
	wg              sync.WaitGroup // Wait for the end of goroutines
	log             *slog.Logger
	workers         []contract.Worker
	restartInterval time.Duration
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	return &Supervisor{log: log, restartInterval: restartInterval}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker...)
	return s
}

// Launch starts the registered workers without blocking.
// If the parent (main) cancels, we Cancel.
// If WE call s.Stop(), only our children Cancel.
func (s *Supervisor) Launch(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, worker := range s.workers {
		s.start(s.ctx, worker)
	}
}

// Run launches the workers and blocks until the supervision context ends
// and every worker returned.
func (s *Supervisor) Run(ctx context.Context) {
	s.Launch(ctx)
	s.Wait()
}

// Spawn starts one more worker under the running supervision context.
// It returns false once the supervisor is stopped or not yet launched.
func (s *Supervisor) Spawn(worker contract.Worker) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil || s.closed || s.ctx.Err() != nil {
		return false
	}
	s.start(s.ctx, worker)
	return true
}

// Wait blocks until the supervision context is done, then until all goroutines finished.
func (s *Supervisor) Wait() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	<-ctx.Done()

	// No Spawn may add to the WaitGroup once we wait on it
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

// start runs a worker under supervision.
// The worker is executed in a dedicated goroutine. If its Run method panics or
// returns an error, the supervisor restarts it after the restart interval.
// A failure in one worker must not stop the supervisor itself.
// Must be called with s.mu held.
func (s *Supervisor) start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Debug(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						s.log.Error("Worker panic", "name", workerName, "panic", r)
						err = errors.ErrWorkerPanic
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				// Terminated properly, never restart !
				s.log.Debug(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Debug("Worker stopped (context canceled)", "name", workerName)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err)
			select {
			case <-ctx.Done():
				// Context canceled: priority stop.
				return
			case <-time.After(s.restartInterval):
			}
		}
	}()
}

// Stop Cancel all goroutines listening channel for Ctx.Done
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
