package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventually(t *testing.T) {
	var flag int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt32(&flag, 1)
	}()
	Eventually(t, func() bool { return atomic.LoadInt32(&flag) == 1 }, time.Second, time.Millisecond)
}

func TestEventuallyWithContext(t *testing.T) {
	ctx, cancel := WithTimeout(t)
	defer cancel()
	calls := 0
	EventuallyWithContext(t, ctx, func() bool {
		calls++
		return calls == 3
	}, time.Millisecond)
	AssertEqual(t, calls, 3)
}

func TestWaitForInt(t *testing.T) {
	var n32 int32
	var n64 int64
	go func() {
		atomic.StoreInt32(&n32, 7)
		atomic.StoreInt64(&n64, 9)
	}()
	WaitForInt32(t, &n32, 7, time.Second)
	WaitForInt64(t, &n64, 9, time.Second)
}

func TestWithTimeoutHasDeadline(t *testing.T) {
	ctx, cancel := WithTimeout(t)
	defer cancel()
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("context has no deadline")
	}
	if left := time.Until(deadline); left <= 0 || left > TestTimeout {
		t.Errorf("deadline %v away, want within %v", left, TestTimeout)
	}
}

func TestCollect(t *testing.T) {
	ch := make(chan int, 3)
	ch <- 1
	ch <- 2
	ch <- 3
	recv := func(ctx context.Context) (int, bool) {
		select {
		case v := <-ch:
			return v, true
		case <-ctx.Done():
			return 0, false
		}
	}
	AssertDeepEqual(t, Collect(t, 3, recv), []int{1, 2, 3})
}

func TestRecorder(t *testing.T) {
	var rec Recorder[string]
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Record("frame")
		}()
	}
	wg.Wait()
	AssertEqual(t, rec.Len(), 10)

	values := rec.Values()
	values[0] = "changed"
	AssertEqual(t, rec.Values()[0], "frame")
}

func TestCallbackTracker(t *testing.T) {
	tr := NewCallbackTracker()
	tr.AssertNotCalled(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Mark()
		}()
	}
	wg.Wait()
	tr.Mark("last")

	tr.AssertCalled(t)
	tr.AssertCallCount(t, 6)
	AssertEqual(t, tr.Value(), interface{}("last"))

	tr.Reset()
	tr.AssertNotCalled(t)
	AssertEqual(t, tr.Value(), nil)
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	c.Advance(90 * time.Second)
	AssertEqual(t, c.Now(), start.Add(90*time.Second))

	c.Set(start)
	AssertEqual(t, c.Now(), start)
}
