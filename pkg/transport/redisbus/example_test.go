package redisbus_test

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/stagebridge/pkg/scheduling/pipeline"
	"github.com/vnykmshr/stagebridge/pkg/streaming/bridge"
	"github.com/vnykmshr/stagebridge/pkg/transport/redisbus"
)

type Scene struct {
	Name string `json:"name"`
}

// Scenes published by a remote controller are relayed through a pipeline
// to a local sink. Needs a running Redis server.
func ExampleSubscribe() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer rdb.Close()

	cfg := redisbus.DefaultConfig()
	cfg.Redis = rdb

	src, err := redisbus.Subscribe[Scene](ctx, cfg)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer src.Close()

	names := pipeline.Map(pipeline.New[Scene](), func(s Scene) string { return s.Name })
	sink := bridge.SinkFunc[string](func(_ context.Context, name string) error {
		fmt.Println("scene", name)
		return nil
	})
	_ = bridge.Run[Scene, string](ctx, src, names, sink)
}
