package scheduler

import (
	"context"
	"os"
	"testing"
	"time"

	"codeberg.org/mutker/xigmatekctl/internal/device"
	"codeberg.org/mutker/xigmatekctl/internal/errors"
	"codeberg.org/mutker/xigmatekctl/internal/logger"
	"codeberg.org/mutker/xigmatekctl/internal/sensors"
	"codeberg.org/mutker/xigmatekctl/internal/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(false, false, true)
	os.Exit(m.Run())
}

// fakeTransport records every command and can fail writes selectively.
type fakeTransport struct {
	openErr    error
	openCalls  int
	writes     []device.Command
	writeErrFn func(cmd device.Command) error
	closeCalls int
	open       bool
}

func (f *fakeTransport) Open() error {
	f.openCalls++
	if f.openErr != nil {
		return f.openErr
	}
	f.open = true
	return nil
}

func (f *fakeTransport) Write(cmd device.Command) error {
	if f.writeErrFn != nil {
		if err := f.writeErrFn(cmd); err != nil {
			return err
		}
	}
	f.writes = append(f.writes, cmd)
	return nil
}

func (f *fakeTransport) Close() error {
	f.closeCalls++
	f.open = false
	return nil
}

func (f *fakeTransport) IsOpen() bool {
	return f.open
}

// fixedSource returns the same reading every tick.
type fixedSource struct {
	reading sensors.Reading
	err     error
}

func (s *fixedSource) Read(_ context.Context) (sensors.Reading, error) {
	return s.reading, s.err
}

func intPtr(v int) *int {
	return &v
}

func testResolver() *sensors.Resolver {
	return sensors.NewResolver(sensors.ResolverConfig{
		MinTemp:     20,
		MaxTemp:     90,
		FallbackCPU: 35,
		FallbackGPU: 40,
	})
}

func newTestScheduler(cfg Config, transport *fakeTransport, source sensors.Source) (*Scheduler, *supervisor.Supervisor) {
	sup := supervisor.New(transport, supervisor.WithRetryPolicy(supervisor.RetryPolicy{
		MaxAttempts: 1,
		Delay:       time.Millisecond,
	}))
	cfg.PenaltyInterval = time.Millisecond
	cfg.PacingGap = time.Nanosecond

	return New(cfg, transport, sup, source, testResolver()), sup
}

func isWake(cmd device.Command) bool {
	return cmd[0] == 0x08
}

func countWakes(cmds []device.Command) int {
	n := 0
	for _, cmd := range cmds {
		if isWake(cmd) {
			n++
		}
	}
	return n
}

func TestTickSendsWakeGPUThenCPU(t *testing.T) {
	transport := &fakeTransport{}
	source := &fixedSource{reading: sensors.Reading{CPU: intPtr(55), GPU: intPtr(45)}}
	sched, _ := newTestScheduler(Config{
		Interval:        time.Second,
		WakeEveryUpdate: true,
		WakeInterval:    10,
	}, transport, source)

	result := sched.tick(context.Background())

	assert.Equal(t, Success, result.Outcome)
	assert.True(t, result.WakeSent)
	assert.Equal(t, 55, result.CPUTemp)
	assert.Equal(t, 45, result.GPUTemp)

	// connect wake, tick wake, GPU, CPU
	require.Len(t, transport.writes, 4)
	assert.Equal(t, device.WakeCommand(), transport.writes[1])
	assert.Equal(t, device.GPUCommand(45), transport.writes[2])
	assert.Equal(t, device.CPUCommand(55), transport.writes[3])
}

func TestWakeCadence(t *testing.T) {
	transport := &fakeTransport{}
	source := &fixedSource{reading: sensors.Reading{CPU: intPtr(50), GPU: intPtr(50)}}
	sched, _ := newTestScheduler(Config{
		Interval:        time.Second,
		WakeEveryUpdate: false,
		WakeInterval:    3,
	}, transport, source)

	var wakeTicks []int
	for tick := 0; tick < 10; tick++ {
		result := sched.tick(context.Background())
		require.Equal(t, Success, result.Outcome, "tick %d", tick)
		if result.WakeSent {
			wakeTicks = append(wakeTicks, tick)
		}
	}

	assert.Equal(t, []int{0, 3, 6, 9}, wakeTicks)
	// 4 cycle wakes + 1 connect wake
	assert.Equal(t, 5, countWakes(transport.writes))
}

func TestWakeEveryUpdate(t *testing.T) {
	transport := &fakeTransport{}
	source := &fixedSource{reading: sensors.Reading{CPU: intPtr(50), GPU: intPtr(50)}}
	sched, _ := newTestScheduler(Config{
		Interval:        time.Second,
		WakeEveryUpdate: true,
		WakeInterval:    10,
	}, transport, source)

	for tick := 0; tick < 5; tick++ {
		result := sched.tick(context.Background())
		assert.True(t, result.WakeSent, "tick %d", tick)
	}
}

func TestSendsAreIndependent(t *testing.T) {
	// GPU writes fail, CPU must still be attempted
	transport := &fakeTransport{
		writeErrFn: func(cmd device.Command) error {
			if cmd[1] == 0x20 {
				return errors.New(device.ErrWriteFailed)
			}
			return nil
		},
	}
	source := &fixedSource{reading: sensors.Reading{CPU: intPtr(60), GPU: intPtr(60)}}
	sched, _ := newTestScheduler(Config{
		Interval:        time.Second,
		WakeEveryUpdate: true,
		WakeInterval:    10,
	}, transport, source)

	result := sched.tick(context.Background())

	assert.Equal(t, PartialFailure, result.Outcome)
	assert.Equal(t, device.CPUCommand(60), transport.writes[len(transport.writes)-1],
		"CPU command must be sent even after the GPU send failed")
}

func TestFallbackOnSensorFailure(t *testing.T) {
	transport := &fakeTransport{}
	source := &fixedSource{err: errors.New(sensors.ErrSensorTimeout)}
	sched, _ := newTestScheduler(Config{
		Interval:        time.Second,
		WakeEveryUpdate: true,
		WakeInterval:    10,
	}, transport, source)

	result := sched.tick(context.Background())

	assert.Equal(t, Success, result.Outcome)
	assert.Equal(t, 35, result.CPUTemp, "Expected configured CPU fallback")
	assert.Equal(t, 40, result.GPUTemp, "Expected configured GPU fallback")
}

func TestSkipsTickWhenUnreachable(t *testing.T) {
	transport := &fakeTransport{openErr: errors.New(device.ErrDeviceNotFound)}
	source := &fixedSource{reading: sensors.Reading{CPU: intPtr(50), GPU: intPtr(50)}}
	sched, sup := newTestScheduler(Config{
		Interval:        time.Second,
		WakeEveryUpdate: true,
		WakeInterval:    10,
	}, transport, source)

	result := sched.tick(context.Background())

	assert.True(t, result.Skipped)
	assert.Equal(t, TransportLost, result.Outcome)
	assert.Empty(t, transport.writes, "No commands may be attempted without a connection")
	assert.Equal(t, supervisor.Disconnected, sup.State())
}

func TestFailureThresholdTriggersReconnect(t *testing.T) {
	failing := true
	transport := &fakeTransport{
		writeErrFn: func(cmd device.Command) error {
			// Let the connect wake through, fail cycle sends
			if failing && cmd[0] == 0x02 {
				return errors.New(device.ErrWriteFailed)
			}
			return nil
		},
	}
	source := &fixedSource{reading: sensors.Reading{CPU: intPtr(50), GPU: intPtr(50)}}
	sched, sup := newTestScheduler(Config{
		Interval:        time.Second,
		WakeEveryUpdate: true,
		WakeInterval:    10,
	}, transport, source)

	for tick := 0; tick < 4; tick++ {
		result := sched.tick(context.Background())
		assert.Equal(t, PartialFailure, result.Outcome, "tick %d", tick)
	}
	assert.Equal(t, 4, sup.ConsecutiveFailures())
	opensBefore := transport.openCalls

	// Fifth consecutive failure reaches the threshold and reconnects
	// within the same tick
	sched.tick(context.Background())
	assert.Zero(t, sup.ConsecutiveFailures())
	assert.Greater(t, transport.openCalls, opensBefore, "Reconnect must reopen the transport")

	// Recovered device: next tick succeeds and sends commands again
	failing = false
	result := sched.tick(context.Background())
	assert.Equal(t, Success, result.Outcome)
}

func TestTransportLostReconnectsImmediately(t *testing.T) {
	lost := true
	transport := &fakeTransport{
		writeErrFn: func(cmd device.Command) error {
			if lost && cmd[0] == 0x02 {
				return errors.New(device.ErrTransportLost)
			}
			return nil
		},
	}
	source := &fixedSource{reading: sensors.Reading{CPU: intPtr(50), GPU: intPtr(50)}}
	sched, sup := newTestScheduler(Config{
		Interval:        time.Second,
		WakeEveryUpdate: true,
		WakeInterval:    10,
	}, transport, source)

	result := sched.tick(context.Background())

	assert.Equal(t, TransportLost, result.Outcome)
	// Handle was torn down and reopened within the tick
	assert.GreaterOrEqual(t, transport.closeCalls, 1)
	assert.Equal(t, 2, transport.openCalls)
	assert.Equal(t, supervisor.Connected, sup.State())
}

func TestRunStopsOnCancellation(t *testing.T) {
	transport := &fakeTransport{}
	source := &fixedSource{reading: sensors.Reading{CPU: intPtr(50), GPU: intPtr(50)}}
	sched, _ := newTestScheduler(Config{
		Interval:        time.Millisecond,
		WakeEveryUpdate: true,
		WakeInterval:    10,
	}, transport, source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sched.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	assert.GreaterOrEqual(t, transport.closeCalls, 1, "Transport must be closed on exit")
	assert.NotEmpty(t, transport.writes)
}
