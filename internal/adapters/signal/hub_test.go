package signal

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lounge-app/lounge/internal/app"
)

type fakeWire struct {
	mu      sync.Mutex
	written [][]byte
	closed  bool
}

func (f *fakeWire) ReadMessage() (int, []byte, error) {
	return 0, nil, errors.New("no reads in this test")
}

func (f *fakeWire) WriteMessage(mt int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, data)
	return nil
}

func (f *fakeWire) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeWire) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWire) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// drain empties the outbound queue without running a write pump.
func drain(t *testing.T, c *Conn) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case data := <-c.send:
			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("queued frame is not an envelope: %v", err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestHubEmitUnicast(t *testing.T) {
	h := NewHub(nil)
	c := newConn(&fakeWire{})
	h.Register("c1", c)

	h.Emit("c1", "HELLO", map[string]string{"k": "v"})

	got := drain(t, c)
	if len(got) != 1 {
		t.Fatalf("queued frames = %d, want 1", len(got))
	}
	if got[0].Event != "HELLO" {
		t.Errorf("event = %s, want HELLO", got[0].Event)
	}
	var payload map[string]string
	if err := json.Unmarshal(got[0].Payload, &payload); err != nil || payload["k"] != "v" {
		t.Errorf("payload = %s", got[0].Payload)
	}
}

func TestHubEmitUnknownConnection(t *testing.T) {
	h := NewHub(nil)
	// Must not panic.
	h.Emit("ghost", "HELLO", nil)
}

func TestHubEmitToRoomExcludesSender(t *testing.T) {
	h := NewHub(nil)
	c1, c2, c3 := newConn(&fakeWire{}), newConn(&fakeWire{}), newConn(&fakeWire{})
	h.Register("c1", c1)
	h.Register("c2", c2)
	h.Register("c3", c3)
	h.JoinChannel("c1", "R1")
	h.JoinChannel("c2", "R1")
	h.JoinChannel("c3", "R2")

	h.EmitToRoom("R1", "PING", nil, "c1")

	if got := drain(t, c1); len(got) != 0 {
		t.Errorf("excluded sender received %d frames", len(got))
	}
	if got := drain(t, c2); len(got) != 1 {
		t.Errorf("room member received %d frames, want 1", len(got))
	}
	if got := drain(t, c3); len(got) != 0 {
		t.Errorf("member of another room received %d frames", len(got))
	}
}

func TestHubLeaveChannel(t *testing.T) {
	h := NewHub(nil)
	c := newConn(&fakeWire{})
	h.Register("c1", c)
	h.JoinChannel("c1", "R1")

	h.LeaveChannel("c1", "R1")
	h.EmitToRoom("R1", "PING", nil, "")

	if got := drain(t, c); len(got) != 0 {
		t.Errorf("connection received %d frames after leaving the channel", len(got))
	}
	// Leaving an unknown channel is a no-op.
	h.LeaveChannel("c1", "nope")
}

func TestHubUnregisterLeavesChannels(t *testing.T) {
	h := NewHub(nil)
	c := newConn(&fakeWire{})
	h.Register("c1", c)
	h.JoinChannel("c1", "R1")

	h.Unregister("c1", c)
	h.EmitToRoom("R1", "PING", nil, "")

	if got := drain(t, c); len(got) != 0 {
		t.Errorf("unregistered connection received %d frames", len(got))
	}
}

func TestHubUnregisterIgnoresStaleConn(t *testing.T) {
	h := NewHub(nil)
	old := newConn(&fakeWire{})
	h.Register("c1", old)

	// A replacement connection takes over the id before the old read pump
	// finishes tearing down.
	replacement := newConn(&fakeWire{})
	h.Register("c1", replacement)
	h.JoinChannel("c1", "R1")

	h.Unregister("c1", old)

	h.Emit("c1", "HELLO", nil)
	if got := drain(t, replacement); len(got) != 1 {
		t.Errorf("replacement received %d frames, want 1", len(got))
	}
	h.EmitToRoom("R1", "PING", nil, "")
	if got := drain(t, replacement); len(got) != 1 {
		t.Errorf("replacement lost its channel membership: %d frames", len(got))
	}
}

func TestHubBackpressureKicksSlowConsumer(t *testing.T) {
	h := NewHub(app.SimplePolicy{})
	w := &fakeWire{}
	c := newConn(w)
	h.Register("slow", c)
	h.JoinChannel("slow", "R1")

	// Fill the send buffer; nothing is draining it.
	for i := 0; ; i++ {
		if err := c.TrySend([]byte("x")); err != nil {
			break
		}
		if i > 1000 {
			t.Fatal("send buffer never filled")
		}
	}

	h.EmitToRoom("R1", "PING", nil, "")

	if !w.isClosed() {
		t.Error("slow consumer was not closed under backpressure")
	}
	if err := c.TrySend([]byte("x")); err != ErrConnClosed {
		t.Errorf("TrySend after kick = %v, want ErrConnClosed", err)
	}
}

func TestConnCloseIdempotent(t *testing.T) {
	c := newConn(&fakeWire{})
	c.Close()
	c.Close()
	if err := c.TrySend([]byte("x")); err != ErrConnClosed {
		t.Errorf("TrySend after close = %v, want ErrConnClosed", err)
	}
}
