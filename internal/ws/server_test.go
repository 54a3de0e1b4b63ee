package ws

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws/wsutil"

	"github.com/cloudchat/server/internal/notify"
)

func newTestServer() *Server {
	hub := notify.NewHub(notify.DefaultMaxChannels, notify.DefaultChannelDepth)
	return NewServer(DefaultServerConfig(), hub, nil)
}

func readEvent(t *testing.T, client net.Conn) notify.Event {
	t.Helper()
	_ = client.SetReadDeadline(time.Now().Add(time.Second))
	data, err := wsutil.ReadServerText(client)
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var ev notify.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

func TestBindUserPushesConnectedEvent(t *testing.T) {
	s := newTestServer()
	serverSide, client := net.Pipe()
	defer client.Close()

	c := &Connection{ID: "conn-1", Conn: serverSide, CreatedAt: time.Now()}
	c.touch()
	s.conns.Add(c)

	s.BindUser(c, "alice")

	if ev := readEvent(t, client); ev.Type != notify.EventConnected {
		t.Errorf("expected %q as the first event, got %q", notify.EventConnected, ev.Type)
	}
}

func TestRebindKeepsSocketAndShedsOldName(t *testing.T) {
	s := newTestServer()
	serverSide, client := net.Pipe()
	defer client.Close()

	c := &Connection{ID: "conn-1", Conn: serverSide, CreatedAt: time.Now()}
	c.touch()
	s.conns.Add(c)

	s.BindUser(c, "alice")
	readEvent(t, client)

	s.BindUser(c, "bob")
	if ev := readEvent(t, client); ev.Type != notify.EventConnected {
		t.Fatalf("expected connected for the new binding, got %q", ev.Type)
	}

	if s.conns.GetByName("alice") != nil {
		t.Error("old name binding should be gone after rebind")
	}
	if s.conns.GetByName("bob") != c {
		t.Error("new name binding should point at the connection")
	}

	// Closing the superseded name's push channel must not drop the socket.
	s.hub.Unregister("alice")
	time.Sleep(50 * time.Millisecond)
	if s.conns.Get(c.ID) == nil {
		t.Fatal("connection dropped when the superseded push channel closed")
	}
	if c.Name() != "bob" {
		t.Errorf("expected binding to stay bob, got %q", c.Name())
	}
}
