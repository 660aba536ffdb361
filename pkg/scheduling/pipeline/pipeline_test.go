package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/vnykmshr/stagebridge/internal/testutil"
	sberrors "github.com/vnykmshr/stagebridge/pkg/common/errors"
	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestEmptyPipelineIsIdentity(t *testing.T) {
	p := New[string]()
	testutil.AssertEqual(t, p.Len(), 0)

	got := run(t, p, "a", "b", "c")
	testutil.AssertDeepEqual(t, got, []string{"a", "b", "c"})
}

func TestMapFilterPreservesOrder(t *testing.T) {
	p := Map(New[int](), func(v int) int { return v * 3 }).
		Filter(func(v int) bool { return v%2 == 0 })
	s := Map(p, strconv.Itoa)

	got := run(t, s, seq(100)...)

	var want []string
	for _, v := range seq(100) {
		if v*3%2 == 0 {
			want = append(want, strconv.Itoa(v*3))
		}
	}
	testutil.AssertDeepEqual(t, got, want)
}

func TestFilterMatchesRestriction(t *testing.T) {
	inputs := []int{5, 3, 8, 8, 1, 0, 12, 7, 7, 2}
	preds := map[string]func(int) bool{
		"all":   func(int) bool { return true },
		"none":  func(int) bool { return false },
		"even":  func(v int) bool { return v%2 == 0 },
		"small": func(v int) bool { return v < 5 },
	}

	for name, pred := range preds {
		t.Run(name, func(t *testing.T) {
			got := run(t, New[int]().Filter(pred), inputs...)

			var want []int
			for _, v := range inputs {
				if pred(v) {
					want = append(want, v)
				}
			}
			testutil.AssertDeepEqual(t, got, want)
		})
	}
}

func TestFilterMap(t *testing.T) {
	p := FilterMap(New[string](), func(s string) (int, bool) {
		n, err := strconv.Atoi(s)
		return n, err == nil
	})

	got := run(t, p, "1", "x", "22", "", "3")
	testutil.AssertDeepEqual(t, got, []int{1, 22, 3})
}

func TestFlatMapEmitsExpansionInOrder(t *testing.T) {
	p := FlatMap(New[int](), func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("%d.%d", n, i)
		}
		return out
	})

	got := run(t, p, 2, 0, 3)
	testutil.AssertDeepEqual(t, got, []string{"2.0", "2.1", "3.0", "3.1", "3.2"})
}

func TestFlatMapEmptyEmitsNothing(t *testing.T) {
	p := FlatMap(New[int](), func(int) []int { return nil })
	got := run(t, p, seq(20)...)
	testutil.AssertEqual(t, len(got), 0)
}

func TestFlatMapSeq(t *testing.T) {
	p := FlatMapSeq(New[[]string](), func(words []string) iter.Seq[string] {
		return slices.Values(words)
	})

	got := run(t, p, []string{"red", "green"}, []string{}, []string{"blue"})
	testutil.AssertDeepEqual(t, got, []string{"red", "green", "blue"})
}

func TestWithSupportsOneToMany(t *testing.T) {
	p := With(New[int](), func(ctx context.Context, v int, out Sender[int]) {
		for i := 0; i < v; i++ {
			_ = out.Send(ctx, v)
		}
	})

	got := run(t, p, 0, 1, 2, 3)
	testutil.AssertDeepEqual(t, got, []int{1, 2, 2, 3, 3, 3})
}

func TestWithFuncSeesWholeStream(t *testing.T) {
	p := WithFunc(New[int](), func(ctx context.Context, in *Receiver[int], out Sender[int]) {
		sum := 0
		for v := range in.All(ctx) {
			sum += v
			_ = out.Send(ctx, sum)
		}
		_ = out.Send(ctx, -1)
	})

	got := run(t, p, 1, 2, 3)
	testutil.AssertDeepEqual(t, got, []int{1, 3, 6, -1})
}

func TestCombinatorsDoNotShareStages(t *testing.T) {
	base := Map(New[int](), func(v int) int { return v + 1 })
	double := Map(base, func(v int) int { return v * 2 })
	negate := Map(base, func(v int) int { return -v })

	testutil.AssertEqual(t, base.Len(), 1)
	testutil.AssertEqual(t, double.Len(), 2)
	testutil.AssertEqual(t, negate.Len(), 2)

	testutil.AssertDeepEqual(t, run(t, base, 1), []int{2})
	testutil.AssertDeepEqual(t, run(t, double, 1), []int{4})
	testutil.AssertDeepEqual(t, run(t, negate, 1), []int{-2})

	names := []string{}
	for _, st := range double.Stages() {
		names = append(names, st.Name())
	}
	testutil.AssertDeepEqual(t, names, []string{"map", "map"})
}

func TestSpawnTwiceGivesIndependentGraphs(t *testing.T) {
	p := Map(New[int](), func(v int) int { return v * 10 })
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	in1, out1 := p.Spawn(ctx, quiet())
	in2, out2 := p.Spawn(ctx, quiet())

	testutil.AssertNoError(t, in1.Send(ctx, 1))
	testutil.AssertNoError(t, in2.Send(ctx, 2))

	v1, _ := out1.Recv(ctx)
	v2, _ := out2.Recv(ctx)
	testutil.AssertEqual(t, v1, 10)
	testutil.AssertEqual(t, v2, 20)

	in1.Close()
	in2.Close()
	drain(ctx, out1)
	drain(ctx, out2)
}

func TestCloseInletStopsEveryStage(t *testing.T) {
	var counter telemetry.Counter
	p := Map(Map(Map(New[int](), func(v int) int { return v }),
		func(v int) int { return v }),
		func(v int) int { return v })

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	g := p.SpawnGraph(ctx, WithObserver(&counter))

	testutil.AssertNoError(t, g.In().Send(ctx, 7))
	g.In().Close()

	testutil.AssertDeepEqual(t, drain(ctx, g.Out()), []int{7})
	testutil.AssertNoError(t, g.Wait(ctx))

	snap := counter.Snapshot()
	testutil.AssertEqual(t, snap.Exited, uint64(3))
	testutil.AssertEqual(t, snap.Failed, uint64(0))
}

func TestCancelStopsGraphWithoutDraining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := Map(New[int](), func(v int) int { return v }).SpawnGraph(ctx, quiet())

	for i := 0; i < 5; i++ {
		testutil.AssertNoError(t, g.In().Send(ctx, i))
	}
	cancel()

	wait, stop := testutil.WithTimeout(t)
	defer stop()
	testutil.AssertNoError(t, g.Wait(wait))

	err := g.In().Send(wait, 99)
	if !errors.Is(err, ErrReceiverGone) {
		t.Fatalf("send into cancelled graph = %v, want ErrReceiverGone", err)
	}
	g.In().Close()
}

func TestGraphCancelMethod(t *testing.T) {
	g := New[int]().Filter(func(int) bool { return true }).SpawnGraph(context.Background(), quiet())
	g.Cancel()

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, g.Wait(ctx))
	<-g.Done()
	g.In().Close()
}

func TestSendAfterReceiverDroppedIsReported(t *testing.T) {
	var counter telemetry.Counter
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	g := Map(New[int](), func(v int) int { return v }).SpawnGraph(ctx, WithObserver(&counter))
	g.Out().Close()

	for i := 0; i < 3; i++ {
		testutil.AssertNoError(t, g.In().Send(ctx, i))
	}
	g.In().Close()
	testutil.AssertNoError(t, g.Wait(ctx))

	testutil.AssertEqual(t, counter.Snapshot().Dropped, uint64(3))
}

func TestStagePanicEndsOnlyThatStage(t *testing.T) {
	var counter telemetry.Counter
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	p := Map(New[int](), func(v int) int {
		if v == 2 {
			panic("bad fixture index")
		}
		return v
	})
	g := p.SpawnGraph(ctx, WithObserver(&counter))

	for i := 0; i < 3; i++ {
		testutil.AssertNoError(t, g.In().Send(ctx, i))
	}

	testutil.AssertDeepEqual(t, drain(ctx, g.Out()), []int{0, 1})
	testutil.AssertNoError(t, g.Wait(ctx))

	err := g.In().Send(ctx, 4)
	if !errors.Is(err, ErrReceiverGone) {
		t.Fatalf("send after stage panic = %v, want ErrReceiverGone", err)
	}
	g.In().Close()

	snap := counter.Snapshot()
	testutil.AssertEqual(t, snap.Failed, uint64(1))
}

func TestSiblingGraphSurvivesPanic(t *testing.T) {
	bad := Map(New[int](), func(int) int { panic("boom") })
	good := Map(New[int](), func(v int) int { return v + 1 })

	testutil.AssertEqual(t, len(run(t, bad, 1)), 0)
	testutil.AssertDeepEqual(t, run(t, good, 1, 2), []int{2, 3})
}

func TestMismatchedEmptyPipelinePanics(t *testing.T) {
	var p Pipeline[int, string]
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	in, out := p.Spawn(ctx, quiet())
	defer in.Close()
	testutil.AssertNoError(t, in.Send(ctx, 1))

	defer func() {
		r := recover()
		ce, ok := r.(*ContractError)
		if !ok {
			t.Fatalf("recovered %v, want *ContractError", r)
		}
		testutil.AssertEqual(t, ce.Expected, "string")
		testutil.AssertEqual(t, ce.Actual, "int")
	}()
	out.Recv(ctx)
}

func TestInletClose(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	in, out := New[int]().Spawn(ctx, quiet())
	in.Close()
	in.Close()

	err := in.Send(ctx, 1)
	if !errors.Is(err, ErrInletClosed) || !errors.Is(err, sberrors.ErrClosed) {
		t.Fatalf("send after close = %v", err)
	}
	_, ok := out.Recv(ctx)
	testutil.AssertEqual(t, ok, false)
}

func TestInletCloseUnblocksSend(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	in, _ := New[int]().Spawn(ctx, quiet(), WithQueueDepth(0))
	errc := make(chan error, 1)
	go func() { errc <- in.Send(ctx, 1) }()

	in.Close()
	err := <-errc
	if !errors.Is(err, ErrInletClosed) {
		t.Fatalf("blocked send = %v, want ErrInletClosed", err)
	}
}

func TestQueueDepth(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	in, out := New[int]().Spawn(ctx, quiet(), WithQueueDepth(2))
	testutil.AssertNoError(t, in.Send(ctx, 1))
	testutil.AssertNoError(t, in.Send(ctx, 2))

	short, stop := context.WithTimeout(ctx, 10*time.Millisecond)
	defer stop()
	testutil.AssertEqual(t, in.Send(short, 3), context.DeadlineExceeded)

	in.Close()
	testutil.AssertDeepEqual(t, drain(ctx, out), []int{1, 2})
}

func TestStageLabels(t *testing.T) {
	rec := &labelRecorder{}
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	p := Map(New[int]().Filter(func(int) bool { return true }), strconv.Itoa)
	g := p.SpawnGraph(ctx, WithName("pads"), WithObserver(rec))
	g.In().Close()
	testutil.AssertNoError(t, g.Wait(ctx))

	got := rec.labels()
	slices.Sort(got)
	testutil.AssertDeepEqual(t, got, []string{"pads/filter[0]", "pads/map[1]"})
}

type labelRecorder struct {
	telemetry.Nop
	rec testutil.Recorder[string]
}

func (r *labelRecorder) StageExited(stage string, _ error) {
	r.rec.Record(stage)
}

func (r *labelRecorder) labels() []string {
	return r.rec.Values()
}
