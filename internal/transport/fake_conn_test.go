package transport

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type readResult struct {
	data []byte
	err  error
}

// fakeConn simula un *websocket.Conn: reads alimenta ReadMessage, written recibe cada frame escrito.
type fakeConn struct {
	reads   chan readResult
	written chan []byte
	closed  chan struct{}
	once    sync.Once

	mu         sync.Mutex
	closeFrame []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:   make(chan readResult, 64),
		written: make(chan []byte, 256),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case r := <-f.reads:
		if r.err != nil {
			return 0, nil, r.err
		}
		return websocket.TextMessage, r.data, nil
	case <-f.closed:
		return 0, nil, net.ErrClosed
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-f.closed:
		return net.ErrClosed
	default:
	}
	if messageType == websocket.CloseMessage {
		f.mu.Lock()
		f.closeFrame = append([]byte(nil), data...)
		f.mu.Unlock()
		return nil
	}
	f.written <- append([]byte(nil), data...)
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) push(t *testing.T, frame Frame) {
	t.Helper()
	data, err := EncodeFrame(frame)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.reads <- readResult{data: data}
}

func (f *fakeConn) pushRaw(data string) {
	f.reads <- readResult{data: []byte(data)}
}

// drop simula una caida de red.
func (f *fakeConn) drop() {
	f.reads <- readResult{err: &websocket.CloseError{Code: websocket.CloseAbnormalClosure}}
}

// closeNormal simula un cierre explicito del otro extremo.
func (f *fakeConn) closeNormal() {
	f.reads <- readResult{err: &websocket.CloseError{Code: websocket.CloseNormalClosure}}
}

// next devuelve el siguiente frame escrito, ignorando los tipos en skip.
func (f *fakeConn) next(t *testing.T, skip ...FrameType) Frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-f.written:
			frame, err := ParseFrame(data)
			if err != nil {
				t.Fatalf("written frame invalid: %v", err)
			}
			if containsType(skip, frame.Type) {
				continue
			}
			return frame
		case <-deadline:
			t.Fatalf("timed out waiting for frame")
			return Frame{}
		}
	}
}

func containsType(types []FrameType, ft FrameType) bool {
	for _, t := range types {
		if t == ft {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
