package device

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	sberrors "github.com/vnykmshr/stagebridge/pkg/common/errors"
	"github.com/vnykmshr/stagebridge/pkg/common/validation"
	"github.com/vnykmshr/stagebridge/pkg/metrics"
	"github.com/vnykmshr/stagebridge/pkg/ratelimit/bucket"
	"github.com/vnykmshr/stagebridge/pkg/scheduling/task"
	"github.com/vnykmshr/stagebridge/pkg/streaming/broadcast"
	"github.com/vnykmshr/stagebridge/pkg/telemetry"
)

// DefaultQueueSize is the input ring and output queue size used when none is
// configured.
const DefaultQueueSize = 128

// ErrClosed is returned by Send after Close.
var ErrClosed = fmt.Errorf("device: closed: %w", sberrors.ErrClosed)

// Driver translates between a device's wire bytes and typed messages. Its
// methods are called from the device's reader and writer goroutines, never
// at the same time, so a Driver may keep state without locking.
type Driver[In, Out any] interface {
	// ProcessInput decodes one message read from the port. It returns false
	// for bytes that carry nothing of interest.
	ProcessInput(data []byte) (In, bool)

	// ProcessOutput encodes one message for the port.
	ProcessOutput(out Out) []byte
}

// Config holds configuration for a Device.
type Config struct {
	// Name labels the device in telemetry and metrics.
	Name string

	// InputCapacity is the size of the decoded input broadcast ring.
	InputCapacity int

	// OutputQueue is how many outputs may wait for the writer before Send
	// blocks.
	OutputQueue int

	// FrameRate limits how many outputs per second reach the port. Zero
	// means unlimited.
	FrameRate bucket.Limit

	// FrameBurst is how many outputs may go out back to back under
	// FrameRate. Defaults to 1.
	FrameBurst int

	// Observer receives write failures and an unexpected reader exit.
	Observer telemetry.Observer

	// Metrics records bytes, throttled frames and undecodable input. Nil
	// disables recording.
	Metrics *metrics.Registry
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Name:          "device",
		InputCapacity: DefaultQueueSize,
		OutputQueue:   DefaultQueueSize,
		FrameBurst:    1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validation.ValidateNotEmpty("device", "name", c.Name); err != nil {
		return err
	}
	if err := validation.ValidatePositive("device", "input_capacity", c.InputCapacity); err != nil {
		return err
	}
	if err := validation.ValidatePositive("device", "output_queue", c.OutputQueue); err != nil {
		return err
	}
	// A burst larger than the queue can never be used.
	if err := validation.ValidateRange("device", "frame_burst", c.FrameBurst, 1, c.OutputQueue); err != nil {
		return err
	}
	return validation.ValidateNonNegative("device", "frame_rate", float64(c.FrameRate))
}

// Device is an open port with a driver. Decoded input is broadcast to every
// subscriber; output is queued and written in order by a dedicated
// goroutine.
type Device[In, Out any] struct {
	cfg  Config
	port Port
	obs  telemetry.Observer

	mu  sync.Mutex // guards drv
	drv Driver[In, Out]

	in      *broadcast.Channel[In]
	out     chan Out
	limiter *bucket.Bucket

	// sendMu guards closed. Close takes it exclusively, so once sealed is
	// closed no Send can still be enqueueing.
	sendMu sync.RWMutex
	closed bool
	sealed chan struct{}

	quit      chan struct{}
	closeOnce sync.Once
	closeErr  error
	writer    sync.WaitGroup
	reader    sync.WaitGroup
}

// Open starts the reader and writer for port. The device owns port from
// here on and closes it in Close.
func Open[In, Out any](port Port, drv Driver[In, Out], cfg Config) (*Device[In, Out], error) {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.InputCapacity == 0 {
		cfg.InputCapacity = def.InputCapacity
	}
	if cfg.OutputQueue == 0 {
		cfg.OutputQueue = def.OutputQueue
	}
	if cfg.FrameBurst <= 0 {
		cfg.FrameBurst = def.FrameBurst
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	in, err := broadcast.NewWithConfig[In](broadcast.Config{
		Capacity: cfg.InputCapacity,
		Name:     cfg.Name,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	d := &Device[In, Out]{
		cfg:  cfg,
		port: port,
		obs:  telemetry.OrDefault(cfg.Observer),
		drv:  drv,
		in:   in,
		out:  make(chan Out, cfg.OutputQueue),
		quit:   make(chan struct{}),
		sealed: make(chan struct{}),
	}
	if cfg.FrameRate > 0 {
		d.limiter, err = bucket.New(cfg.FrameRate, cfg.FrameBurst)
		if err != nil {
			return nil, err
		}
	}

	d.reader.Add(1)
	go d.readLoop()
	d.writer.Add(1)
	go d.writeLoop()
	return d, nil
}

// Name returns the configured device name.
func (d *Device[In, Out]) Name() string {
	return d.cfg.Name
}

// Subscribe returns a cursor over decoded input.
func (d *Device[In, Out]) Subscribe() broadcast.Subscription[In] {
	return d.in.Subscribe()
}

// Send queues out for the writer. It blocks while the queue is full.
func (d *Device[In, Out]) Send(ctx context.Context, out Out) error {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.out <- out:
		return nil
	case <-d.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Driver runs fn with exclusive access to the driver, for reading or
// changing its state between messages.
func (d *Device[In, Out]) Driver(fn func(drv Driver[In, Out])) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.drv)
}

// Close stops the device. Outputs already queued are written, without
// pacing, before the port is closed. Subscribers drain buffered input and
// then see broadcast.ErrClosed. Close is idempotent and returns the port's
// close error.
func (d *Device[In, Out]) Close() error {
	d.closeOnce.Do(func() {
		close(d.quit)
		d.sendMu.Lock()
		d.closed = true
		d.sendMu.Unlock()
		close(d.sealed)
		d.writer.Wait()
		d.closeErr = d.port.Close()
		d.reader.Wait()
	})
	return d.closeErr
}

func (d *Device[In, Out]) readLoop() {
	defer d.reader.Done()
	defer d.in.Close()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		data, err := d.port.Read()
		if err != nil {
			select {
			case <-d.quit:
			default:
				if !errors.Is(err, ErrPortClosed) {
					d.obs.StageExited(d.cfg.Name+"/in", err)
				}
			}
			return
		}
		d.count("in", len(data))

		d.mu.Lock()
		v, ok := d.drv.ProcessInput(data)
		d.mu.Unlock()
		if !ok {
			if d.cfg.Metrics != nil {
				d.cfg.Metrics.DeviceDecodeMiss.WithLabelValues(d.cfg.Name).Inc()
			}
			continue
		}
		_, _ = d.in.Send(v)
	}
}

func (d *Device[In, Out]) writeLoop() {
	defer d.writer.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-d.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case v := <-d.out:
			if !d.pace(ctx) {
				d.write(v)
				d.drain()
				return
			}
			d.write(v)
		case <-d.quit:
			d.drain()
			return
		}
	}
}

// pace waits for the frame limiter. It returns false if the device is
// closing.
func (d *Device[In, Out]) pace(ctx context.Context) bool {
	if d.limiter == nil || d.limiter.Allow() {
		return true
	}
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.DeviceThrottled.WithLabelValues(d.cfg.Name).Inc()
	}
	return d.limiter.Wait(ctx) == nil
}

// drain writes everything queued once no Send can add more.
func (d *Device[In, Out]) drain() {
	<-d.sealed
	d.flush()
}

func (d *Device[In, Out]) flush() {
	for {
		select {
		case v := <-d.out:
			d.write(v)
		default:
			return
		}
	}
}

func (d *Device[In, Out]) write(v Out) {
	d.mu.Lock()
	data := d.drv.ProcessOutput(v)
	d.mu.Unlock()

	if err := d.port.Write(data); err != nil {
		d.obs.Dropped(d.cfg.Name+"/out", err)
		return
	}
	d.count("out", len(data))
}

func (d *Device[In, Out]) count(direction string, n int) {
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.DeviceBytes.WithLabelValues(d.cfg.Name, direction).Add(float64(n))
	}
}

// Spawn runs f on a task with the device, for control logic that reacts to
// the device's own input. The task is cancelled with the returned handle;
// it does not close the device.
func Spawn[In, Out any](d *Device[In, Out], f func(ctx context.Context, d *Device[In, Out]), opts ...task.Option) *task.Task {
	opts = append([]task.Option{task.WithName(d.cfg.Name), task.WithObserver(d.obs)}, opts...)
	return task.Spawn(func(ctx context.Context) {
		f(ctx, d)
	}, opts...)
}

var _ broadcast.Source[int] = (*Device[int, int])(nil)
