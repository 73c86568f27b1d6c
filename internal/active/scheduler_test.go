package active

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsTasksInPostingOrder(t *testing.T) {
	s := NewScheduler(8)
	defer s.Close()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		s.Push(func() {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not drain tasks in time")
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

type counter struct {
	n int
}

func (c *counter) Add(x int) int {
	c.n += x
	return c.n
}

func TestProxyPostRunsOnSchedulerGoroutine(t *testing.T) {
	s := NewScheduler(1)
	defer s.Close()
	c := &counter{}
	p := NewProxy(c, s)

	done := make(chan struct{})
	p.Post(func(c *counter) {
		c.Add(1)
		close(done)
	})
	<-done
	require.Equal(t, 1, c.n)
}

func TestPostFutureReturnsResult(t *testing.T) {
	s := NewScheduler(1)
	defer s.Close()
	c := &counter{n: 10}
	p := NewProxy(c, s)

	result, err := PostFuture(p, func(c *counter) (int, error) {
		return c.Add(5), nil
	})
	require.NoError(t, err)
	require.Equal(t, 15, result)
}

func TestSafeCallbackDropsAfterKill(t *testing.T) {
	s := NewScheduler(1)
	defer s.Close()
	c := &counter{}
	guard := NewLiveness()
	guard.Kill()

	delivered := make(chan struct{}, 1)
	SafeCallback(s, guard, func(c *counter) { delivered <- struct{}{} }, c)
	s.Push(func() {}) // fence: ensures the callback above has had its chance to run
	select {
	case <-delivered:
		t.Fatal("callback delivered after guard was killed")
	case <-time.After(50 * time.Millisecond):
	}
}
