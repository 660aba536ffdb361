package broadcast_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/vnykmshr/stagebridge/pkg/streaming/broadcast"
	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

func ExampleChannel() {
	ch := broadcast.New[string](2)
	sub := ch.Subscribe()
	defer sub.Close()

	for _, cue := range []string{"house", "preset", "go", "blackout"} {
		_, _ = ch.Send(cue)
	}
	ch.Close()

	ctx := context.Background()
	for {
		v, err := sub.Recv(ctx)
		var lagged *broadcast.LaggedError
		switch {
		case errors.As(err, &lagged):
			fmt.Println("missed", lagged.Skipped)
			continue
		case err != nil:
			fmt.Println("closed")
			return
		}
		fmt.Println(v)
	}

	// Output:
	// missed 2
	// go
	// blackout
	// closed
}

func ExampleListenOnce() {
	ch := broadcast.New[int](8)
	fired := make(chan int)

	broadcast.ListenOnce[int](ch,
		func(v int) bool { return v%2 == 0 },
		func(_ context.Context, v int) { fired <- v },
		broadcast.WithObserver(telemetry.Nop{}),
	)

	for _, v := range []int{1, 3, 4, 6} {
		_, _ = ch.Send(v)
	}
	fmt.Println("first even:", <-fired)

	// Output:
	// first even: 4
}
