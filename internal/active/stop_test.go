package active

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitForReturnsTrueOnTimeout(t *testing.T) {
	sc := NewStopCondition()
	require.True(t, sc.WaitFor(10*time.Millisecond))
}

func TestWaitForReturnsFalseWhenRaised(t *testing.T) {
	sc := NewStopCondition()
	go func() {
		time.Sleep(5 * time.Millisecond)
		sc.Raise()
	}()
	require.False(t, sc.WaitFor(time.Second))
	require.True(t, sc.Raised())
}

func TestResetAllowsReuse(t *testing.T) {
	sc := NewStopCondition()
	sc.Raise()
	require.True(t, sc.Raised())
	sc.Reset()
	require.False(t, sc.Raised())
	require.True(t, sc.WaitFor(5*time.Millisecond))
}

func TestGUISyncWaitReadyBlocksUntilSignalled(t *testing.T) {
	g := NewGUISync()
	unblocked := make(chan struct{})
	go func() {
		g.WaitReady()
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("WaitReady returned before GUIReady was signalled")
	case <-time.After(20 * time.Millisecond):
	}

	g.GUIReady()
	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not unblock after GUIReady")
	}
}
