package harness

import (
	"context"
	"time"

	"pubharness/pkg/healthcheck"
	"pubharness/pkg/publisher"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

const defaultStopTimeout = 10 * time.Second

// ErrStopTimeout is returned by Await when a handle did not exit in time.
var ErrStopTimeout = errors.New("publisher did not exit after stop")

// Supervisor starts a set of publisher handles, lets them run and stops them.
type Supervisor struct {
	handles     []publisher.Handle
	recorder    *Recorder
	stopTimeout time.Duration
	observers   []func(publisherID, payload string)
}

type Option func(s *Supervisor)

// WithStopTimeout bounds how long Run waits for handles to exit after Stop.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		s.stopTimeout = d
	}
}

// WithObserver is called for every notification, after it was recorded.
func WithObserver(f func(publisherID, payload string)) Option {
	return func(s *Supervisor) {
		s.observers = append(s.observers, f)
	}
}

func NewSupervisor(handles []publisher.Handle, opts ...Option) *Supervisor {
	s := &Supervisor{
		handles:     handles,
		recorder:    NewRecorder(),
		stopTimeout: defaultStopTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts every handle and keeps them running for duration, until ctx is
// done or until a handle fails. A launch failure stops the handles already
// started. The returned error is the first fatal handle error.
func (s *Supervisor) Run(ctx context.Context, duration time.Duration) (Report, error) {
	for _, h := range s.handles {
		h.SetOnPublished(s.callback(h.PublisherID()))
	}

	for i, h := range s.handles {
		if err := h.Start(); err != nil {
			klog.ErrorS(err, "Publisher failed to start, stopping the run", "publisher", h.PublisherID())
			s.stop(s.handles[:i])
			return s.report(false), errors.Wrapf(err, "cannot start publisher %s", h.PublisherID())
		}
	}
	klog.InfoS("Publishers started", "count", len(s.handles), "duration", duration)

	failed := make(chan publisher.Handle, len(s.handles))
	for _, h := range s.handles {
		go func(h publisher.Handle) {
			<-h.Done()
			if h.Err() != nil {
				failed <- h
			}
		}(h)
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	var runErr error
	interrupted := false
	select {
	case <-timer.C:
		klog.InfoS("Run duration elapsed", "duration", duration)
	case <-ctx.Done():
		klog.InfoS("Run interrupted", "reason", ctx.Err())
		interrupted = true
	case h := <-failed:
		runErr = errors.Wrapf(h.Err(), "publisher %s failed", h.PublisherID())
		klog.ErrorS(runErr, "Aborting the run")
	}

	s.stop(s.handles)
	return s.report(interrupted), runErr
}

func (s *Supervisor) callback(publisherID string) publisher.Callback {
	record := s.recorder.Callback(publisherID)
	if len(s.observers) == 0 {
		return record
	}
	return func(payload string) {
		record(payload)
		for _, o := range s.observers {
			o(publisherID, payload)
		}
	}
}

func (s *Supervisor) stop(handles []publisher.Handle) {
	for _, h := range handles {
		h.Stop()
	}
	if err := Await(handles, s.stopTimeout); err != nil {
		klog.ErrorS(err, "Some publishers are still running")
	}
}

// Await waits for every handle to exit, at most timeout.
func Await(handles []publisher.Handle, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var g errgroup.Group
	for _, h := range handles {
		h := h
		g.Go(func() error {
			select {
			case <-h.Done():
				return nil
			case <-ctx.Done():
				klog.InfoS("Publisher did not exit in time", "publisher", h.PublisherID(), "timeout", timeout)
				return errors.Wrapf(ErrStopTimeout, "publisher %s", h.PublisherID())
			}
		})
	}
	return g.Wait()
}

func (s *Supervisor) report(interrupted bool) Report {
	r := Report{
		Published:   s.recorder.Snapshot(),
		Failures:    map[string]error{},
		Interrupted: interrupted,
	}
	for _, h := range s.handles {
		if err := h.Err(); err != nil {
			r.Failures[h.PublisherID()] = err
		}
	}
	return r
}

// HealthCheckers returns one checker per handle, keyed by publisher id. A
// handle that exited with an error is unhealthy, one that exited cleanly is
// degraded.
func (s *Supervisor) HealthCheckers() map[string]healthcheck.HealthChecker {
	checkers := make(map[string]healthcheck.HealthChecker, len(s.handles))
	for _, h := range s.handles {
		h := h
		checkers[h.PublisherID()] = healthcheck.CheckerFunc(func(ctx context.Context) healthcheck.HealthResult {
			select {
			case <-h.Done():
			default:
				return healthcheck.HealthyResult
			}
			if err := h.Err(); err != nil {
				return healthcheck.HealthResult{Status: healthcheck.Unhealthy, Description: err.Error()}
			}
			return healthcheck.HealthResult{Status: healthcheck.Degraded, Description: "publisher exited"}
		})
	}
	return checkers
}
