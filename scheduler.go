package bimtester

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// TestScheduler decides when runs happen. Runs never overlap: a run started by the
// interval waits for the previous one to return, so one workspace root is never used by
// two runs at once.
type TestScheduler interface {
	Start(ctx context.Context) error
	Stop() error
	RegisterCallback(func(ctx context.Context) error)
	WaitForShutdown(ctx context.Context) error
	Stopped() bool
}

// DefaultTestScheduler implements the TestScheduler interface.
type DefaultTestScheduler struct {
	interval time.Duration
	runOnce  bool
	logger   log.Logger
	callback func(ctx context.Context) error

	running atomic.Bool
	runs    atomic.Int64
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	lastErr error
}

func NewDefaultTestScheduler(interval time.Duration, runOnce bool, logger log.Logger) *DefaultTestScheduler {
	return &DefaultTestScheduler{
		interval: interval,
		runOnce:  runOnce,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// RegisterCallback registers the callback to be called when a run is due.
func (s *DefaultTestScheduler) RegisterCallback(callback func(ctx context.Context) error) {
	s.callback = callback
}

// Start runs the callback immediately. In run-once mode it returns the callback's error;
// otherwise a failing first run aborts and later runs are repeated until Stop, with their
// errors logged. The interval is measured from the end of one run to the start of the next.
func (s *DefaultTestScheduler) Start(ctx context.Context) error {
	if s.callback == nil {
		return errors.New("callback must be registered before starting scheduler")
	}

	s.done = make(chan struct{})
	s.running.Store(true)

	if s.runOnce {
		s.logger.Info("Starting scheduler in run-once mode")
		return s.run(ctx)
	}

	s.logger.Info("Starting scheduler in continuous mode", "interval", s.interval)
	if err := s.run(ctx); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

func (s *DefaultTestScheduler) run(ctx context.Context) error {
	err := s.callback(ctx)
	s.runs.Add(1)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	return err
}

func (s *DefaultTestScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			if !s.running.Load() {
				s.logger.Debug("Scheduler stopped, exiting periodic runner")
				return
			}
			s.logger.Info("Starting scheduled run", "run", s.runs.Load()+1)
			if err := s.run(ctx); err != nil {
				s.logger.Error("Scheduled run failed", "error", err)
			}
			s.logger.Info("Next run scheduled", "in", s.interval)
			timer.Reset(s.interval)

		case <-s.done:
			s.logger.Debug("Done signal received, stopping periodic runner")
			return

		case <-ctx.Done():
			s.logger.Debug("Context canceled, stopping periodic runner")
			s.running.Store(false)
			return
		}
	}
}

// Runs is the number of completed runs, failed ones included.
func (s *DefaultTestScheduler) Runs() int64 {
	return s.runs.Load()
}

// LastError is the error of the most recent run, nil if it succeeded.
func (s *DefaultTestScheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *DefaultTestScheduler) Stop() error {
	if !s.running.Swap(false) {
		s.logger.Debug("Scheduler already stopped, nothing to do")
		return nil
	}
	close(s.done)
	return nil
}

func (s *DefaultTestScheduler) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until the periodic runner has returned, including a run in
// progress.
func (s *DefaultTestScheduler) WaitForShutdown(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.logger.Debug("Periodic runner finished")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for the periodic runner", "error", ctx.Err())
		return ctx.Err()
	}
}
