package translate

import (
	"context"
	"io"
	"sync"
)

// MockProvider hands out scripted in-memory connections. It backs
// translator.mode=mock and the session tests.
type MockProvider struct {
	ConnectErr error

	mu    sync.Mutex
	conns []*MockConn
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Connect(_ context.Context, _ SessionConfig) (Conn, error) {
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	conn := newMockConn()
	p.mu.Lock()
	p.conns = append(p.conns, conn)
	p.mu.Unlock()
	return conn, nil
}

// Conns returns every connection handed out so far.
func (p *MockProvider) Conns() []*MockConn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*MockConn(nil), p.conns...)
}

// LastConn returns the most recently opened connection, or nil.
func (p *MockProvider) LastConn() *MockConn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.conns) == 0 {
		return nil
	}
	return p.conns[len(p.conns)-1]
}

// MockConn records sent frames and replays scripted response events.
type MockConn struct {
	mu         sync.Mutex
	sent       []Frame
	sendErr    error
	recvErr    error
	closeCalls int

	events chan Event
	closed chan struct{}
	once   sync.Once
}

func newMockConn() *MockConn {
	return &MockConn{
		events: make(chan Event, 64),
		closed: make(chan struct{}),
	}
}

func (c *MockConn) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.sent = append(c.sent, frame)
	return nil
}

func (c *MockConn) Receive() (Event, error) {
	c.mu.Lock()
	err := c.recvErr
	c.mu.Unlock()
	if err != nil {
		return Event{}, err
	}
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.closed:
		return Event{}, io.EOF
	}
}

func (c *MockConn) Close() error {
	c.mu.Lock()
	c.closeCalls++
	c.mu.Unlock()
	c.once.Do(func() { close(c.closed) })
	return nil
}

// Emit queues a scripted response event for Receive.
func (c *MockConn) Emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.closed:
	}
}

// FailSend makes subsequent Send calls return err.
func (c *MockConn) FailSend(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// FailReceive makes subsequent Receive calls return err.
func (c *MockConn) FailReceive(err error) {
	c.mu.Lock()
	c.recvErr = err
	c.mu.Unlock()
	// Wake a blocked Receive so the error is observed promptly.
	select {
	case c.events <- Event{}:
	default:
	}
}

// Sent returns the frames sent so far, in order.
func (c *MockConn) Sent() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.sent...)
}

// CloseCalls returns how many times Close has been invoked.
func (c *MockConn) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}
