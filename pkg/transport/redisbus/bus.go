package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	sberrors "github.com/vnykmshr/stagebridge/pkg/common/errors"
	"github.com/vnykmshr/stagebridge/pkg/streaming/bridge"
	"github.com/vnykmshr/stagebridge/pkg/streaming/broadcast"
)

// Source relays JSON messages from a Redis pub/sub channel to local
// subscribers. Remote controllers, such as a tablet UI or another bridge,
// publish to the channel; pipelines subscribe to the Source.
type Source[T any] struct {
	cfg  Config
	ps   *redis.PubSub
	out  *broadcast.Channel[T]
	done chan struct{}
	once sync.Once
	err  error
}

// Subscribe joins the configured channel and starts relaying. It returns
// once Redis has confirmed the subscription.
func Subscribe[T any](ctx context.Context, cfg Config) (*Source[T], error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ps := cfg.Redis.Subscribe(ctx, cfg.Channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, sberrors.NewOperationError("redisbus", "subscribe", err).WithContext(cfg.Channel)
	}

	out, err := broadcast.NewWithConfig[T](broadcast.Config{
		Capacity: cfg.Capacity,
		Name:     cfg.Channel,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		_ = ps.Close()
		return nil, err
	}

	s := &Source[T]{cfg: cfg, ps: ps, out: out, done: make(chan struct{})}
	go s.relay(ps.Channel())
	return s, nil
}

func (s *Source[T]) relay(msgs <-chan *redis.Message) {
	defer close(s.done)
	defer s.out.Close()

	for msg := range msgs {
		v, err := Decode[T](msg.Payload)
		if err != nil {
			s.cfg.Observer.Dropped(s.cfg.Channel, err)
			continue
		}
		s.cfg.count("in")
		_, _ = s.out.Send(v)
	}
}

// Subscribe returns a cursor over decoded messages.
func (s *Source[T]) Subscribe() broadcast.Subscription[T] {
	return s.out.Subscribe()
}

// Close leaves the channel and waits for the relay to stop. Local
// subscribers then see broadcast.ErrClosed. Close is idempotent.
func (s *Source[T]) Close() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
		<-s.done
	})
	return s.err
}

// Publisher writes values as JSON to a Redis pub/sub channel. It is a
// bridge.Sink, so a pipeline can fan control events out to other bridges.
type Publisher[T any] struct {
	cfg Config
}

// NewPublisher creates a publisher for the configured channel.
func NewPublisher[T any](cfg Config) (*Publisher[T], error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Publisher[T]{cfg: cfg}, nil
}

// Write publishes v. It fails if v cannot be encoded or Redis does not
// answer within the configured timeout.
func (p *Publisher[T]) Write(ctx context.Context, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return sberrors.NewOperationError("redisbus", "encode", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	if err := p.cfg.Redis.Publish(ctx, p.cfg.Channel, data).Err(); err != nil {
		p.cfg.Observer.Dropped(p.cfg.Channel, err)
		return sberrors.NewOperationError("redisbus", "publish", err).WithContext(p.cfg.Channel)
	}
	p.cfg.count("out")
	return nil
}

// Decode parses one message payload.
func Decode[T any](payload string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return v, fmt.Errorf("redisbus: decode: %w", err)
	}
	return v, nil
}

var (
	_ broadcast.Source[int] = (*Source[int])(nil)
	_ bridge.Sink[int]      = (*Publisher[int])(nil)
)
