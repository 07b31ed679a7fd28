package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ourchat/ourchat-client/internal/proto"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(2, zap.NewNop())
	t.Cleanup(func() { _ = s.Close(time.Second) })
	return s
}

// pump ticks until cond holds or the deadline passes.
func pump(t *testing.T, s *Scheduler, cond func() bool) {
	t.Helper()
	for i := 0; i < 400; i++ {
		s.Tick()
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestDispatchInPublishOrder(t *testing.T) {
	s := newTestScheduler(t)

	var got []string
	s.Listen(proto.CodeAccountFinishInfo, func(ev proto.Event) {
		got = append(got, ev.(proto.AccountFinishInfo).OCID)
	})

	s.Publish(proto.AccountFinishInfo{OCID: "first"})
	s.Publish(proto.AccountFinishInfo{OCID: "second"})
	s.Publish(proto.AccountFinishInfo{OCID: "third"})
	s.Tick()

	require.Equal(t, []string{"first", "second", "third"}, got)
}

func TestSubscribersInvokedInSubscriptionOrder(t *testing.T) {
	s := newTestScheduler(t)

	var got []string
	s.Listen(proto.CodeAccountFinishInfo, func(proto.Event) { got = append(got, "a") })
	s.Listen(proto.CodeAccountFinishInfo, func(proto.Event) { got = append(got, "b") })

	s.Publish(proto.AccountFinishInfo{OCID: "x"})
	s.Tick()

	require.Equal(t, []string{"a", "b"}, got)
}

func TestReentrantPublishLandsInNextTick(t *testing.T) {
	s := newTestScheduler(t)

	var got []string
	s.Listen(proto.CodeAccountFinishInfo, func(ev proto.Event) {
		got = append(got, ev.(proto.AccountFinishInfo).OCID)
		if ev.(proto.AccountFinishInfo).OCID == "outer" {
			s.Publish(proto.AccountFinishInfo{OCID: "inner"})
		}
	})

	s.Publish(proto.AccountFinishInfo{OCID: "outer"})
	s.Tick()
	require.Equal(t, []string{"outer"}, got)

	s.Tick()
	require.Equal(t, []string{"outer", "inner"}, got)
}

func TestEventWithoutSubscriberIsDropped(t *testing.T) {
	s := newTestScheduler(t)
	s.Publish(proto.AccountFinishInfo{OCID: "nobody"})
	// must not panic or linger
	s.Tick()
	s.Tick()
}

func TestUnlistenStopsDispatch(t *testing.T) {
	s := newTestScheduler(t)

	calls := 0
	sub := s.Listen(proto.CodeAccountFinishInfo, func(proto.Event) { calls++ })

	s.Publish(proto.AccountFinishInfo{OCID: "x"})
	s.Tick()
	require.Equal(t, 1, calls)

	require.NoError(t, s.Unlisten(sub))
	s.Publish(proto.AccountFinishInfo{OCID: "x"})
	s.Tick()
	require.Equal(t, 1, calls)
}

func TestUnlistenUnknownSubscriptionIsError(t *testing.T) {
	s := newTestScheduler(t)

	sub := s.Listen(proto.CodeAccountFinishInfo, func(proto.Event) {})
	require.NoError(t, s.Unlisten(sub))
	require.Error(t, s.Unlisten(sub))
	require.Error(t, s.Unlisten(nil))
}

func TestSubscriberPanicDoesNotAbortTick(t *testing.T) {
	s := newTestScheduler(t)

	var afterPanic, deferred bool
	s.Listen(proto.CodeAccountFinishInfo, func(proto.Event) { panic("boom") })
	s.Listen(proto.CodeAccountFinishInfo, func(proto.Event) { afterPanic = true })
	s.DeferToMainThread(func() { deferred = true })

	s.Publish(proto.AccountFinishInfo{OCID: "x"})
	s.Tick()

	require.True(t, afterPanic, "subscriber after the panicking one must still run")
	require.True(t, deferred, "deferred closures must still drain")
}

func TestSubmitOnCompleteExactlyOnce(t *testing.T) {
	s := newTestScheduler(t)

	calls := 0
	var gotResult any
	_, err := s.Submit(func() (any, error) {
		return 42, nil
	}, func(result any, err error) {
		calls++
		gotResult = result
		require.NoError(t, err)
	})
	require.NoError(t, err)

	pump(t, s, func() bool { return calls > 0 })
	for i := 0; i < 10; i++ {
		s.Tick()
	}
	require.Equal(t, 1, calls)
	require.Equal(t, 42, gotResult)
	require.Equal(t, 0, s.PendingTasks())
}

func TestWorkerErrorReachesOnComplete(t *testing.T) {
	s := newTestScheduler(t)

	var gotErr error
	done := false
	_, err := s.Submit(func() (any, error) {
		return nil, errors.New("task failed")
	}, func(_ any, err error) {
		gotErr = err
		done = true
	})
	require.NoError(t, err)

	pump(t, s, func() bool { return done })
	require.EqualError(t, gotErr, "task failed")
}

func TestWorkerPanicCapturedAsError(t *testing.T) {
	s := newTestScheduler(t)

	var gotErr error
	done := false
	_, err := s.Submit(func() (any, error) {
		panic("worker exploded")
	}, func(_ any, err error) {
		gotErr = err
		done = true
	})
	require.NoError(t, err)

	pump(t, s, func() bool { return done })
	require.ErrorContains(t, gotErr, "worker exploded")
}

func TestDeferToMainThreadRunsOnTick(t *testing.T) {
	s := newTestScheduler(t)

	ran := false
	s.DeferToMainThread(func() { ran = true })
	require.False(t, ran)
	s.Tick()
	require.True(t, ran)
}

func TestConcurrentSubmitAndClose(t *testing.T) {
	s := New(2, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, err := s.Submit(func() (any, error) { return nil, nil }, nil); err != nil {
					return
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Close(2*time.Second))
	wg.Wait()
}

func TestSubmitAfterCloseFails(t *testing.T) {
	s := New(1, zap.NewNop())
	require.NoError(t, s.Close(time.Second))
	_, err := s.Submit(func() (any, error) { return nil, nil }, nil)
	require.Error(t, err)
	// closing twice is fine
	require.NoError(t, s.Close(time.Second))
}
