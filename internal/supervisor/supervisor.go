// Package supervisor owns the connection state machine around the device
// transport: bounded open retries, the consecutive-failure threshold and the
// reconnect decision. It is driven by the single scheduler goroutine.
package supervisor

import (
	"context"
	"time"

	"codeberg.org/mutker/xigmatekctl/internal/device"
	"codeberg.org/mutker/xigmatekctl/internal/logger"
	"github.com/jonboulle/clockwork"
)

// State is the connection state, owned exclusively by the supervisor.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Failing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failing:
		return "failing"
	default:
		return "unknown"
	}
}

const (
	defaultMaxAttempts      = 10
	defaultRetryDelay       = 5 * time.Second
	defaultFailureThreshold = 5
)

// RetryPolicy bounds connection attempts: at most MaxAttempts opens with a
// fixed Delay between them. No backoff; the device either comes back or it
// doesn't.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy returns the policy used in production.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		Delay:       defaultRetryDelay,
	}
}

// Supervisor manages open, retry and reconnect around a transport.
type Supervisor struct {
	transport device.Transport
	policy    RetryPolicy
	threshold int
	clock     clockwork.Clock
	state     State
	failures  int
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithRetryPolicy overrides the connection retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(s *Supervisor) {
		s.policy = policy
	}
}

// WithFailureThreshold overrides the consecutive-failure count that forces
// a reconnect.
func WithFailureThreshold(threshold int) Option {
	return func(s *Supervisor) {
		s.threshold = threshold
	}
}

// WithClock overrides the clock used for retry delays.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Supervisor) {
		s.clock = clock
	}
}

// New returns a supervisor for the given transport, starting Disconnected.
func New(transport device.Transport, opts ...Option) *Supervisor {
	s := &Supervisor{
		transport: transport,
		policy:    DefaultRetryPolicy(),
		threshold: defaultFailureThreshold,
		clock:     clockwork.NewRealClock(),
		state:     Disconnected,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	return s.state
}

// ConsecutiveFailures returns the current consecutive-failure count.
func (s *Supervisor) ConsecutiveFailures() int {
	return s.failures
}

// EnsureConnected makes the transport usable, opening it if necessary.
// It attempts at most MaxAttempts opens with the policy delay between them,
// sending one wake command after each successful open to initialize the
// display; a failed wake counts as a failed attempt. Returns false, leaving
// the state Disconnected, once attempts are exhausted or ctx is cancelled.
func (s *Supervisor) EnsureConnected(ctx context.Context) bool {
	if s.state == Connected || s.state == Failing {
		return true
	}

	s.state = Connecting
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			s.state = Disconnected
			return false
		}

		if err := s.connectOnce(); err != nil {
			logger.Warn().
				Int("attempt", attempt).
				Int("max_attempts", s.policy.MaxAttempts).
				Err(err).
				Msg("Connection attempt failed")
			if attempt < s.policy.MaxAttempts && !s.wait(ctx) {
				s.state = Disconnected
				return false
			}

			continue
		}

		s.state = Connected
		s.failures = 0
		logger.Info().Int("attempt", attempt).Msg("Display connected")

		return true
	}

	s.state = Disconnected
	logger.Error().
		Int("attempts", s.policy.MaxAttempts).
		Msg("Failed to connect after all attempts")

	return false
}

func (s *Supervisor) connectOnce() error {
	if err := s.transport.Open(); err != nil {
		return err
	}

	// Wake the display so the first temperature update is visible
	if err := s.transport.Write(device.WakeCommand()); err != nil {
		_ = s.transport.Close()
		return err
	}

	return nil
}

func (s *Supervisor) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(s.policy.Delay):
		return true
	}
}

// ReportFailure records one failed update cycle.
func (s *Supervisor) ReportFailure() {
	s.failures++
	if s.state == Connected {
		s.state = Failing
	}
}

// ReportSuccess resets the consecutive-failure counter.
func (s *Supervisor) ReportSuccess() {
	s.failures = 0
	if s.state == Failing {
		s.state = Connected
	}
}

// ShouldReconnect reports whether the failure threshold has been reached.
// When it has, the counter is reset, the stale handle is closed and the
// state returns to Disconnected so the next EnsureConnected reopens.
func (s *Supervisor) ShouldReconnect() bool {
	if s.failures < s.threshold {
		return false
	}

	logger.Warn().
		Int("consecutive_failures", s.failures).
		Msg("Failure threshold reached, forcing reconnect")
	s.failures = 0
	s.Disconnect()

	return true
}

// Disconnect closes the handle and marks the connection Disconnected.
func (s *Supervisor) Disconnect() {
	if err := s.transport.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close stale handle")
	}
	s.state = Disconnected
}

// Close tears the connection down for shutdown.
func (s *Supervisor) Close() error {
	s.state = Disconnected
	return s.transport.Close()
}
