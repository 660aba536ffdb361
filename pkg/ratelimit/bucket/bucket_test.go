package bucket

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/vnykmshr/stagebridge/internal/testutil"
	sberrors "github.com/vnykmshr/stagebridge/pkg/common/errors"
)

func newTest(t *testing.T, rate Limit, burst, initial int) (*Bucket, *testutil.MockClock) {
	t.Helper()
	clock := testutil.NewMockClock(time.Time{})
	b, err := NewWithConfig(Config{
		Rate:          rate,
		Burst:         burst,
		Clock:         clock,
		InitialTokens: initial,
	})
	testutil.AssertNoError(t, err)
	return b, clock
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		rate    Limit
		burst   int
		wantErr bool
	}{
		{"valid parameters", 10, 5, false},
		{"zero rate", 0, 5, false},
		{"infinite rate", Inf, 5, false},
		{"negative rate", -1, 5, true},
		{"zero burst", 10, 0, true},
		{"negative burst", 10, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.rate, tt.burst)
			if tt.wantErr {
				if !sberrors.IsValidationError(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				if b != nil {
					t.Error("expected nil bucket on error")
				}
				return
			}
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, b.Rate(), tt.rate)
			testutil.AssertEqual(t, b.Burst(), tt.burst)
			testutil.AssertEqual(t, b.Tokens(), float64(tt.burst))
		})
	}
}

func TestEveryAndFrameRate(t *testing.T) {
	tests := []struct {
		name string
		got  Limit
		want Limit
	}{
		{"every 100ms", Every(100 * time.Millisecond), 10},
		{"every 2s", Every(2 * time.Second), 0.5},
		{"every zero", Every(0), Inf},
		{"40 fps", FrameRate(40), 40},
		{"zero fps", FrameRate(0), Inf},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.IsInf(float64(tt.want), 1) {
				if !math.IsInf(float64(tt.got), 1) {
					t.Errorf("got %v, want Inf", tt.got)
				}
				return
			}
			if math.Abs(float64(tt.got-tt.want)) > 1e-10 {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestAllowRefills(t *testing.T) {
	b, clock := newTest(t, 10, 5, -1)

	for i := 0; i < 5; i++ {
		if !b.Allow() {
			t.Fatalf("frame %d should be allowed", i+1)
		}
	}
	if b.Allow() {
		t.Fatal("6th frame should be held back")
	}

	clock.Advance(100 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("frame after 100ms should be allowed")
	}
	if b.Allow() {
		t.Fatal("refilled token was already taken")
	}
}

func TestAllowN(t *testing.T) {
	b, _ := newTest(t, 10, 10, -1)

	testutil.AssertEqual(t, b.AllowN(3), true)
	testutil.AssertEqual(t, b.Tokens(), 7.0)
	testutil.AssertEqual(t, b.AllowN(7), true)
	testutil.AssertEqual(t, b.AllowN(1), false)
	testutil.AssertEqual(t, b.AllowN(0), true)
	testutil.AssertEqual(t, b.AllowN(11), false)
}

func TestReserve(t *testing.T) {
	b, clock := newTest(t, 10, 2, 1)

	r1 := b.Reserve()
	testutil.AssertEqual(t, r1.OK(), true)
	testutil.AssertEqual(t, r1.Delay(), time.Duration(0))

	r2 := b.Reserve()
	testutil.AssertEqual(t, r2.OK(), true)
	testutil.AssertEqual(t, r2.DelayFrom(clock.Now()), 100*time.Millisecond)

	clock.Advance(40 * time.Millisecond)
	testutil.AssertEqual(t, r2.Delay(), 60*time.Millisecond)
}

func TestReservationCancel(t *testing.T) {
	b, _ := newTest(t, 10, 2, 1)

	r := b.ReserveN(2)
	testutil.AssertEqual(t, r.OK(), true)
	testutil.AssertEqual(t, b.Tokens(), -1.0)

	r.Cancel()
	testutil.AssertEqual(t, b.Tokens(), 1.0)
	r.Cancel()
	testutil.AssertEqual(t, b.Tokens(), 1.0)
}

func TestWaitImmediate(t *testing.T) {
	b, _ := newTest(t, 10, 1, 1)
	testutil.AssertNoError(t, b.Wait(context.Background()))
	testutil.AssertEqual(t, b.Tokens(), 0.0)
}

func TestWaitPaces(t *testing.T) {
	b, err := New(FrameRate(50), 1)
	testutil.AssertNoError(t, err)
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	start := time.Now()
	for i := 0; i < 4; i++ {
		testutil.AssertNoError(t, b.Wait(ctx))
	}
	// One frame free, then three at 20ms each.
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("4 frames at 50fps took %v", elapsed)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	b, err := New(1, 1)
	testutil.AssertNoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	b.Allow()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	if err := b.Wait(ctx2); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	// The abandoned reservation was returned.
	if b.Tokens() < 0 {
		t.Fatalf("tokens = %v after cancelled wait", b.Tokens())
	}
}

func TestWaitUnsatisfiable(t *testing.T) {
	b, _ := newTest(t, 0, 2, 0)

	err := b.Wait(context.Background())
	if !errors.Is(err, sberrors.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	b2, _ := newTest(t, 10, 2, -1)
	if err := b2.WaitN(context.Background(), 3); !sberrors.IsRetryable(err) {
		t.Fatalf("expected retryable rate limit error, got %v", err)
	}
}

func TestSetRateAndBurst(t *testing.T) {
	b, _ := newTest(t, 10, 5, -1)

	b.SetRate(20)
	testutil.AssertEqual(t, b.Rate(), Limit(20))
	testutil.AssertEqual(t, b.Burst(), 5)

	testutil.AssertNoError(t, b.SetBurst(2))
	testutil.AssertEqual(t, b.Burst(), 2)
	testutil.AssertEqual(t, b.Tokens(), 2.0)

	if err := b.SetBurst(0); !sberrors.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInfiniteRate(t *testing.T) {
	b, _ := newTest(t, Inf, 1, -1)
	for i := 0; i < 1000; i++ {
		if !b.Allow() {
			t.Fatalf("frame %d held back at infinite rate", i)
		}
	}
	testutil.AssertEqual(t, b.Tokens(), 1.0)
}

func TestZeroRate(t *testing.T) {
	b, clock := newTest(t, 0, 5, -1)
	for i := 0; i < 5; i++ {
		if !b.Allow() {
			t.Fatalf("initial frame %d should be allowed", i)
		}
	}
	testutil.AssertEqual(t, b.Allow(), false)
	clock.Advance(time.Hour)
	testutil.AssertEqual(t, b.Allow(), false)
}

func TestConcurrentAccess(t *testing.T) {
	b, err := New(100, 10)
	testutil.AssertNoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Allow()
				b.Tokens()
				b.Rate()
			}
		}()
	}
	wg.Wait()
}
