// Package scheduler runs the update loop: on a fixed cadence it resolves
// temperatures, decides whether a wake command is due, encodes and sends the
// commands, classifies the cycle outcome and drives the supervisor's
// reconnect path. The loop is the sole writer to the transport and the sole
// mutator of supervisor state.
package scheduler

import (
	"context"
	"time"

	"codeberg.org/mutker/xigmatekctl/internal/device"
	"codeberg.org/mutker/xigmatekctl/internal/errors"
	"codeberg.org/mutker/xigmatekctl/internal/logger"
	"codeberg.org/mutker/xigmatekctl/internal/sensors"
	"codeberg.org/mutker/xigmatekctl/internal/supervisor"
	"codeberg.org/mutker/xigmatekctl/internal/telemetry"
	"github.com/jonboulle/clockwork"
)

const (
	// Wait after a failed reconnect before the next tick tries again.
	defaultPenaltyInterval = 10 * time.Second

	// Gap between consecutive commands within one cycle.
	defaultPacingGap = 50 * time.Millisecond

	// Cycles between periodic info-level status lines.
	statusLogEvery = 20
)

// Outcome classifies one update cycle.
type Outcome int

const (
	Success Outcome = iota
	PartialFailure
	TransportLost
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case PartialFailure:
		return "partial_failure"
	case TransportLost:
		return "transport_lost"
	default:
		return "unknown"
	}
}

// CycleResult is the outcome of one tick. Created fresh per tick, never
// persisted by the scheduler itself.
type CycleResult struct {
	Outcome  Outcome
	CPUTemp  int
	GPUTemp  int
	WakeSent bool
	Skipped  bool
}

// Config holds the scheduler's timing and wake policy. All values are
// validated at startup by the config package.
type Config struct {
	Interval        time.Duration
	WakeEveryUpdate bool
	WakeInterval    int
	PenaltyInterval time.Duration
	PacingGap       time.Duration
}

// connectionSupervisor is the slice of the supervisor the loop drives.
type connectionSupervisor interface {
	EnsureConnected(ctx context.Context) bool
	ReportFailure()
	ReportSuccess()
	ShouldReconnect() bool
	ConsecutiveFailures() int
	Disconnect()
	State() supervisor.State
}

// Scheduler owns the loop state. It must only be run from one goroutine;
// the cancellation context is the only cross-goroutine interaction.
type Scheduler struct {
	cfg       Config
	transport device.Transport
	sup       connectionSupervisor
	source    sensors.Source
	resolver  *sensors.Resolver
	collector telemetry.Collector
	clock     clockwork.Clock

	tickCount    uint64
	lastWakeTick int64
	successCount uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the clock used for waits and pacing.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithCollector enables cycle telemetry recording.
func WithCollector(collector telemetry.Collector) Option {
	return func(s *Scheduler) {
		s.collector = collector
	}
}

// New returns a scheduler. The transport, supervisor, source and resolver
// are required; telemetry is optional.
func New(
	cfg Config,
	transport device.Transport,
	sup connectionSupervisor,
	source sensors.Source,
	resolver *sensors.Resolver,
	opts ...Option,
) *Scheduler {
	if cfg.PenaltyInterval == 0 {
		cfg.PenaltyInterval = defaultPenaltyInterval
	}
	if cfg.PacingGap == 0 {
		cfg.PacingGap = defaultPacingGap
	}

	s := &Scheduler{
		cfg:          cfg,
		transport:    transport,
		sup:          sup,
		source:       source,
		resolver:     resolver,
		clock:        clockwork.NewRealClock(),
		lastWakeTick: -1,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run executes update cycles until ctx is cancelled. It never returns a
// cycle error; a bad cycle is recorded and the loop keeps going, retrying
// at the penalty interval when the device stays unreachable. The transport
// is closed on every exit path.
func (s *Scheduler) Run(ctx context.Context) error {
	defer func() {
		if err := s.transport.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close transport on shutdown")
		}
	}()

	logger.Info().
		Dur("interval", s.cfg.Interval).
		Bool("wake_every_update", s.cfg.WakeEveryUpdate).
		Int("wake_interval", s.cfg.WakeInterval).
		Msg("Starting temperature updates")

	for {
		if ctx.Err() != nil {
			return nil
		}

		s.tick(ctx)

		if !s.wait(ctx, s.cfg.Interval) {
			return nil
		}
	}
}

// tick runs one update cycle.
func (s *Scheduler) tick(ctx context.Context) CycleResult {
	defer func() { s.tickCount++ }()

	if s.sup.State() != supervisor.Connected && s.sup.State() != supervisor.Failing {
		if !s.sup.EnsureConnected(ctx) {
			logger.Warn().Msg("Device unreachable, waiting before retry")
			s.wait(ctx, s.cfg.PenaltyInterval)

			return s.record(ctx, CycleResult{Outcome: TransportLost, Skipped: true})
		}
	}

	reading, err := s.source.Read(ctx)
	if err != nil {
		// Fallback substitution is the resolver's job; an empty reading
		// resolves to the configured fallbacks.
		logger.Warn().Err(err).Msg("Sensor read failed, using fallback temperatures")
		reading = sensors.Reading{}
	}
	cpuTemp, gpuTemp := s.resolver.Resolve(reading)

	result := s.sendCycle(ctx, cpuTemp, gpuTemp)

	switch result.Outcome {
	case Success:
		s.sup.ReportSuccess()
		s.successCount++
		if s.successCount%statusLogEvery == 0 {
			logger.Info().
				Uint64("update", s.successCount).
				Int("cpu_temp", cpuTemp).
				Int("gpu_temp", gpuTemp).
				Msg("Display updated")
		}
	case TransportLost:
		s.sup.ReportFailure()
		s.sup.Disconnect()
		s.sup.EnsureConnected(ctx)
	case PartialFailure:
		s.sup.ReportFailure()
		if s.sup.ShouldReconnect() {
			// Reconnect within this tick rather than stacking a full
			// interval on top of the retry delays.
			s.sup.EnsureConnected(ctx)
		}
	}

	return s.record(ctx, result)
}

// sendCycle sends the wake (when due), GPU and CPU commands. The sends are
// independent: one failure never suppresses the others.
func (s *Scheduler) sendCycle(ctx context.Context, cpuTemp, gpuTemp int) CycleResult {
	result := CycleResult{CPUTemp: cpuTemp, GPUTemp: gpuTemp}
	var sendErrs []error

	if s.wakeDue() {
		if err := s.transport.Write(device.WakeCommand()); err != nil {
			logger.Warn().Err(err).Msg("Wake command failed")
			sendErrs = append(sendErrs, err)
		} else {
			result.WakeSent = true
			s.lastWakeTick = int64(s.tickCount)
		}
		s.wait(ctx, s.cfg.PacingGap)
	}

	// GPU before CPU; the controller expects this order
	if err := s.transport.Write(device.GPUCommand(gpuTemp)); err != nil {
		logger.Warn().Err(err).Int("gpu_temp", gpuTemp).Msg("GPU update failed")
		sendErrs = append(sendErrs, err)
	}
	s.wait(ctx, s.cfg.PacingGap)

	if err := s.transport.Write(device.CPUCommand(cpuTemp)); err != nil {
		logger.Warn().Err(err).Int("cpu_temp", cpuTemp).Msg("CPU update failed")
		sendErrs = append(sendErrs, err)
	}

	result.Outcome = classify(sendErrs)

	return result
}

// wakeDue reports whether this tick must include a wake command. The first
// tick always wakes the display.
func (s *Scheduler) wakeDue() bool {
	if s.cfg.WakeEveryUpdate || s.lastWakeTick < 0 {
		return true
	}

	return int64(s.tickCount)-s.lastWakeTick >= int64(s.cfg.WakeInterval)
}

func classify(sendErrs []error) Outcome {
	if len(sendErrs) == 0 {
		return Success
	}

	for _, err := range sendErrs {
		if errors.IsCode(err, device.ErrTransportLost) {
			return TransportLost
		}
	}

	return PartialFailure
}

func (s *Scheduler) record(ctx context.Context, result CycleResult) CycleResult {
	logger.Debug().
		Str("outcome", result.Outcome.String()).
		Int("cpu_temp", result.CPUTemp).
		Int("gpu_temp", result.GPUTemp).
		Bool("wake_sent", result.WakeSent).
		Bool("skipped", result.Skipped).
		Int("consecutive_failures", s.sup.ConsecutiveFailures()).
		Msg("Cycle complete")

	if s.collector == nil {
		return result
	}

	snapshot := &telemetry.CycleSnapshot{
		Timestamp:           s.clock.Now(),
		CPUTemp:             result.CPUTemp,
		GPUTemp:             result.GPUTemp,
		WakeSent:            result.WakeSent,
		Outcome:             result.Outcome.String(),
		ConsecutiveFailures: s.sup.ConsecutiveFailures(),
	}
	if err := s.collector.Record(ctx, snapshot); err != nil {
		logger.Warn().Err(err).Msg("Failed to record cycle telemetry")
	}

	return result
}

// wait sleeps for d on the injected clock, returning false when ctx was
// cancelled first. This is the loop's only suspension point, so shutdown
// latency is bounded by the clock granularity, not by d.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(d):
		return true
	}
}
