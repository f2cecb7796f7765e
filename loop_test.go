package threadloop

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageRunUsesCallingGoroutinesLoop(t *testing.T) {
	loops := make(chan *Loop, 1)
	errs := make(chan error, 1)

	go func() {
		l, err := Get()
		if err != nil {
			errs <- err
			return
		}
		loops <- l
		err = Run()
		l.Free()
		errs <- err
	}()

	var l *Loop
	select {
	case l = <-loops:
	case err := <-errs:
		t.Fatal(err)
	}

	var ran atomic.Bool
	l.Defer(func() {
		ran.Store(true)
		l.SetSilent(true)
	})

	select {
	case err := <-errs:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Run to return")
	}
	require.True(t, ran.Load())
}

func TestIntegrateDrivesLoopWithoutBlocking(t *testing.T) {
	l, err := Get()
	require.NoError(t, err)

	ran := make(chan struct{})
	l.Defer(func() { close(ran) })

	// Integrate returns immediately; the deferred callback still executes.
	l.Integrate()
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for deferred callback under Integrate")
	}

	stopped := make(chan struct{})
	l.Defer(func() {
		l.SetSilent(true)
		close(stopped)
	})
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for loop to go silent")
	}

	// The background iteration finishes moments after the silent flag is
	// observed; give it room before tearing down.
	time.Sleep(100 * time.Millisecond)
	l.Free()
}

func TestSetSilentPropagatesToNativeLoop(t *testing.T) {
	fe := newFakeEngine()
	l, err := Get(WithEngine(fe))
	require.NoError(t, err)
	defer l.Free()

	fl := fe.loops[0]

	l.SetSilent(true)
	fl.mu.Lock()
	silent := fl.silent
	fl.mu.Unlock()
	require.True(t, silent)
	require.True(t, l.data.silent)

	l.SetSilent(false)
	fl.mu.Lock()
	silent = fl.silent
	fl.mu.Unlock()
	require.False(t, silent)
	require.False(t, l.data.silent)
}

func TestGetSkipsNilOptions(t *testing.T) {
	l, err := Get(nil, WithEngine(newFakeEngine()), nil)
	require.NoError(t, err)
	l.Free()
}

func TestGetAcceptsNilLogger(t *testing.T) {
	l, err := Get(WithEngine(newFakeEngine()), WithLogger(nil))
	require.NoError(t, err)

	// Lifecycle logging is a no-op on a nil logger, including during Free.
	l.Free()
}

func TestDeferNilFuncIsNoop(t *testing.T) {
	fe := newFakeEngine()
	l, err := Get(WithEngine(fe))
	require.NoError(t, err)
	defer l.Free()

	base := fe.loops[0].wakeCount()
	l.Defer(nil)
	assert.Equal(t, base, fe.loops[0].wakeCount())
	assert.Zero(t, l.data.deferQueue.Len())
}
