package supervisor_test

import (
	"context"
	"os"
	"testing"
	"time"

	"codeberg.org/mutker/xigmatekctl/internal/device"
	"codeberg.org/mutker/xigmatekctl/internal/errors"
	"codeberg.org/mutker/xigmatekctl/internal/logger"
	"codeberg.org/mutker/xigmatekctl/internal/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(false, false, true)
	os.Exit(m.Run())
}

// fakeTransport implements device.Transport with scriptable failures.
type fakeTransport struct {
	openCalls  int
	openErrs   int // number of leading Open calls that fail
	writeCalls int
	writeErr   error
	closeCalls int
	open       bool
	writes     []device.Command
}

func (f *fakeTransport) Open() error {
	f.openCalls++
	if f.openCalls <= f.openErrs {
		return errors.New(device.ErrDeviceNotFound)
	}
	f.open = true
	return nil
}

func (f *fakeTransport) Write(cmd device.Command) error {
	f.writeCalls++
	if f.writeErr != nil {
		return f.writeErr
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

func fastPolicy(maxAttempts int) supervisor.RetryPolicy {
	return supervisor.RetryPolicy{
		MaxAttempts: maxAttempts,
		Delay:       time.Millisecond,
	}
}

func TestEnsureConnectedFirstAttempt(t *testing.T) {
	transport := &fakeTransport{}
	sup := supervisor.New(transport, supervisor.WithRetryPolicy(fastPolicy(10)))

	require.True(t, sup.EnsureConnected(context.Background()))
	assert.Equal(t, supervisor.Connected, sup.State())
	assert.Equal(t, 1, transport.openCalls)

	// Connecting initializes the display with one wake command
	require.Len(t, transport.writes, 1)
	assert.Equal(t, device.WakeCommand(), transport.writes[0])

	// Already connected: no further opens
	require.True(t, sup.EnsureConnected(context.Background()))
	assert.Equal(t, 1, transport.openCalls)
}

func TestEnsureConnectedExhaustsAttempts(t *testing.T) {
	transport := &fakeTransport{openErrs: 100}
	sup := supervisor.New(transport, supervisor.WithRetryPolicy(fastPolicy(10)))

	require.False(t, sup.EnsureConnected(context.Background()))
	assert.Equal(t, supervisor.Disconnected, sup.State())
	assert.Equal(t, 10, transport.openCalls)
	assert.Zero(t, transport.writeCalls, "No commands should be sent without a connection")
}

func TestEnsureConnectedRetriesAfterWakeFailure(t *testing.T) {
	transport := &fakeTransport{writeErr: errors.New(device.ErrWriteFailed)}
	sup := supervisor.New(transport, supervisor.WithRetryPolicy(fastPolicy(3)))

	require.False(t, sup.EnsureConnected(context.Background()))
	assert.Equal(t, supervisor.Disconnected, sup.State())
	// A failed wake consumes the attempt and closes the handle
	assert.Equal(t, 3, transport.openCalls)
	assert.Equal(t, 3, transport.closeCalls)
}

func TestEnsureConnectedCancellation(t *testing.T) {
	transport := &fakeTransport{openErrs: 100}
	sup := supervisor.New(transport, supervisor.WithRetryPolicy(supervisor.RetryPolicy{
		MaxAttempts: 10,
		Delay:       time.Hour,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	require.False(t, sup.EnsureConnected(ctx))
	assert.Equal(t, supervisor.Disconnected, sup.State())
	assert.Equal(t, 1, transport.openCalls, "Cancellation should stop further attempts")
}

func TestFailureThresholdForcesReconnect(t *testing.T) {
	transport := &fakeTransport{}
	sup := supervisor.New(transport, supervisor.WithRetryPolicy(fastPolicy(10)))
	require.True(t, sup.EnsureConnected(context.Background()))

	for i := 0; i < 4; i++ {
		sup.ReportFailure()
		assert.False(t, sup.ShouldReconnect(), "Threshold must not trigger at %d failures", i+1)
	}
	assert.Equal(t, 4, sup.ConsecutiveFailures())

	sup.ReportFailure()
	assert.True(t, sup.ShouldReconnect())
	assert.Equal(t, supervisor.Disconnected, sup.State())
	assert.Zero(t, sup.ConsecutiveFailures(), "Counter must reset on reconnect decision")
	assert.GreaterOrEqual(t, transport.closeCalls, 1, "Stale handle must be closed")
}

func TestReportSuccessResetsCounter(t *testing.T) {
	transport := &fakeTransport{}
	sup := supervisor.New(transport)
	require.True(t, sup.EnsureConnected(context.Background()))

	sup.ReportFailure()
	sup.ReportFailure()
	assert.Equal(t, supervisor.Failing, sup.State())

	sup.ReportSuccess()
	assert.Zero(t, sup.ConsecutiveFailures())
	assert.Equal(t, supervisor.Connected, sup.State())
	assert.False(t, sup.ShouldReconnect())
}
