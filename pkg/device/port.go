package device

import (
	"errors"
	"fmt"
	"io"
	"sync"

	sberrors "github.com/vnykmshr/stagebridge/pkg/common/errors"
)

// ErrPortClosed is returned by Port methods after Close.
var ErrPortClosed = fmt.Errorf("device: port closed: %w", sberrors.ErrClosed)

// Port is a blocking message transport to a physical or virtual device.
// Read returns one message per call. Close must unblock a pending Read, which
// then returns ErrPortClosed.
type Port interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Close() error
}

// MemoryPort is an in-process Port. Input is injected with Inject and
// written messages are recorded. A loopback MemoryPort also feeds every
// write back as input.
type MemoryPort struct {
	rx       chan []byte
	loopback bool

	mu      sync.Mutex
	written [][]byte
	notify  chan struct{}

	closed chan struct{}
	once   sync.Once
}

// NewMemoryPort creates a port buffering up to size injected messages.
func NewMemoryPort(size int) *MemoryPort {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &MemoryPort{
		rx:     make(chan []byte, size),
		notify: make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// NewLoopbackPort creates a MemoryPort whose writes are read back.
func NewLoopbackPort(size int) *MemoryPort {
	p := NewMemoryPort(size)
	p.loopback = true
	return p
}

// Inject queues data as if the device had sent it. It blocks while the
// buffer is full.
func (p *MemoryPort) Inject(data []byte) error {
	msg := append([]byte(nil), data...)
	select {
	case <-p.closed:
		return ErrPortClosed
	default:
	}
	select {
	case p.rx <- msg:
		return nil
	case <-p.closed:
		return ErrPortClosed
	}
}

func (p *MemoryPort) Read() ([]byte, error) {
	select {
	case msg := <-p.rx:
		return msg, nil
	case <-p.closed:
		return nil, ErrPortClosed
	}
}

func (p *MemoryPort) Write(data []byte) error {
	select {
	case <-p.closed:
		return ErrPortClosed
	default:
	}
	msg := append([]byte(nil), data...)

	p.mu.Lock()
	p.written = append(p.written, msg)
	close(p.notify)
	p.notify = make(chan struct{})
	p.mu.Unlock()

	if p.loopback {
		return p.Inject(msg)
	}
	return nil
}

// Written returns a copy of every message written so far.
func (p *MemoryPort) Written() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.written))
	copy(out, p.written)
	return out
}

// Wrote returns a channel closed on the next Write.
func (p *MemoryPort) Wrote() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notify
}

// Close is idempotent.
func (p *MemoryPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

// StreamPort adapts an io.ReadWriteCloser, such as a UDP connection or a
// serial device file, to Port. Each Read returns what one underlying Read
// produced, which preserves message boundaries on datagram transports.
type StreamPort struct {
	rwc  io.ReadWriteCloser
	buf  []byte
	once sync.Once
	done chan struct{}
}

// NewStreamPort wraps rwc with a read buffer of size bytes.
func NewStreamPort(rwc io.ReadWriteCloser, size int) *StreamPort {
	if size <= 0 {
		size = 1024
	}
	return &StreamPort{rwc: rwc, buf: make([]byte, size), done: make(chan struct{})}
}

func (p *StreamPort) Read() ([]byte, error) {
	n, err := p.rwc.Read(p.buf)
	if err != nil {
		select {
		case <-p.done:
			return nil, ErrPortClosed
		default:
		}
		if errors.Is(err, io.EOF) {
			return nil, ErrPortClosed
		}
		return nil, err
	}
	return append([]byte(nil), p.buf[:n]...), nil
}

func (p *StreamPort) Write(data []byte) error {
	_, err := p.rwc.Write(data)
	return err
}

// Close closes the underlying stream once.
func (p *StreamPort) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		err = p.rwc.Close()
	})
	return err
}

var (
	_ Port = (*MemoryPort)(nil)
	_ Port = (*StreamPort)(nil)
)
