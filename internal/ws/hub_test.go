package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quizroom/quizroom-api/internal/middleware"
	"github.com/quizroom/quizroom-api/internal/token"
	"go.uber.org/zap"
)

func startHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func newTestClient(hub *Hub, room, username string) *Client {
	return &Client{
		hub:      hub,
		send:     make(chan []byte, sendBufferSize),
		room:     room,
		username: username,
		logger:   zap.NewNop(),
	}
}

func readFrame(t *testing.T, c *Client) Frame {
	t.Helper()

	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed while expecting a frame")
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

func expectNoFrame(t *testing.T, c *Client) {
	t.Helper()

	select {
	case data := <-c.send:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubJoinReplaysHistoryAndNotifiesOthers(t *testing.T) {
	t.Parallel()

	hub := startHub(t)

	first := newTestClient(hub, "general", "alice")
	hub.register <- first
	// First client into an empty room gets neither history nor its own
	// join notice
	expectNoFrame(t, first)

	hub.incoming <- inbound{client: first, message: Message{User: "alice", Text: "hello", Time: time.Now().UTC()}}
	frame := readFrame(t, first)
	if frame.Type != FrameMessage || frame.Message.Text != "hello" {
		t.Fatalf("sender should receive its own message, got %+v", frame)
	}

	second := newTestClient(hub, "general", "bob")
	hub.register <- second

	// The newcomer gets the backlog: alice's join notice and her message
	history := readFrame(t, second)
	if history.Type != FrameHistory {
		t.Fatalf("expected history frame, got %+v", history)
	}
	if len(history.Messages) != 2 {
		t.Fatalf("expected 2 backlog messages, got %d", len(history.Messages))
	}
	if history.Messages[0].User != SystemUser {
		t.Errorf("expected join notice first, got %+v", history.Messages[0])
	}
	if history.Messages[1].Text != "hello" {
		t.Errorf("expected chat message second, got %+v", history.Messages[1])
	}

	// The existing client is told about the newcomer
	notice := readFrame(t, first)
	if notice.Type != FrameMessage || notice.Message.User != SystemUser {
		t.Fatalf("expected join notice, got %+v", notice)
	}
	if !strings.Contains(notice.Message.Text, "bob") {
		t.Errorf("join notice should name the newcomer, got %q", notice.Message.Text)
	}

	// The newcomer does not receive its own join notice
	expectNoFrame(t, second)
}

func TestHubHistoryCap(t *testing.T) {
	t.Parallel()

	hub := startHub(t)

	// An unregistered sender still appends to the room history
	phantom := newTestClient(hub, "busy", "crowd")
	for i := 0; i < HistoryLimit+50; i++ {
		hub.incoming <- inbound{
			client:  phantom,
			message: Message{User: "crowd", Text: fmt.Sprintf("msg-%d", i), Time: time.Now().UTC()},
		}
	}

	joiner := newTestClient(hub, "busy", "late")
	hub.register <- joiner

	history := readFrame(t, joiner)
	if history.Type != FrameHistory {
		t.Fatalf("expected history frame, got %+v", history)
	}
	if len(history.Messages) != HistoryLimit {
		t.Fatalf("expected history capped at %d, got %d", HistoryLimit, len(history.Messages))
	}
	if history.Messages[0].Text != "msg-50" {
		t.Errorf("expected oldest retained message msg-50, got %q", history.Messages[0].Text)
	}
	if last := history.Messages[len(history.Messages)-1]; last.Text != fmt.Sprintf("msg-%d", HistoryLimit+49) {
		t.Errorf("expected newest message last, got %q", last.Text)
	}
}

func TestHubLeaveNotice(t *testing.T) {
	t.Parallel()

	hub := startHub(t)

	alice := newTestClient(hub, "general", "alice")
	hub.register <- alice
	bob := newTestClient(hub, "general", "bob")
	hub.register <- bob
	readFrame(t, alice) // bob's join notice

	hub.unregister <- bob

	notice := readFrame(t, alice)
	if notice.Type != FrameMessage || notice.Message.User != SystemUser {
		t.Fatalf("expected leave notice, got %+v", notice)
	}
	if !strings.Contains(notice.Message.Text, "bob") {
		t.Errorf("leave notice should name the leaver, got %q", notice.Message.Text)
	}

	// The removed client's channel is closed
	select {
	case _, ok := <-bob.send:
		if ok {
			// drain until close
			for range bob.send {
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected bob's send channel to close")
	}
}

func TestHubRoomIsolation(t *testing.T) {
	t.Parallel()

	hub := startHub(t)

	alice := newTestClient(hub, "room-a", "alice")
	hub.register <- alice
	bob := newTestClient(hub, "room-b", "bob")
	hub.register <- bob

	hub.incoming <- inbound{client: alice, message: Message{User: "alice", Text: "only room a", Time: time.Now().UTC()}}

	frame := readFrame(t, alice)
	if frame.Message == nil || frame.Message.Text != "only room a" {
		t.Fatalf("expected alice's message, got %+v", frame)
	}
	expectNoFrame(t, bob)
}

// TestHubShutdownUnblocksClients verifies a client whose connection fails
// after the hub has stopped does not hang handing itself back
func TestHubShutdownUnblocksClients(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := newTestClient(hub, "general", "alice")
	hub.register <- client

	cancel()

	// The hub closes registered send channels on the way out
	closed := func() bool {
		deadline := time.After(2 * time.Second)
		for {
			select {
			case _, ok := <-client.send:
				if !ok {
					return true
				}
			case <-deadline:
				return false
			}
		}
	}
	if !closed() {
		t.Fatal("send channel not closed on shutdown")
	}

	detached := make(chan struct{})
	go func() {
		client.detach()
		close(detached)
	}()

	select {
	case <-detached:
	case <-time.After(2 * time.Second):
		t.Fatal("detach blocked after hub shutdown")
	}
}

// TestServeChat runs one real websocket round trip through the HTTP handler
func TestServeChat(t *testing.T) {
	t.Parallel()

	hub := startHub(t)
	handler := NewHandler(hub, "", zap.NewNop())

	// Stands in for the auth gate
	withIdentity := func(email string, next http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := &token.Claims{UserID: "00000000-0000-0000-0000-000000000001", Email: email}
			next(w, r.WithContext(middleware.SetClaimsInContext(r.Context(), claims)))
		})
	}

	srv := httptest.NewServer(withIdentity("alice@example.com", handler.ServeChat))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?room=e2e&username=alice"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()
	_ = resp.Body.Close()

	if err := conn.WriteJSON(clientMessage{Text: "ping from alice"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Type != FrameMessage || frame.Message == nil {
		t.Fatalf("expected message frame, got %+v", frame)
	}
	if frame.Message.User != "alice" || frame.Message.Text != "ping from alice" {
		t.Errorf("unexpected message: %+v", frame.Message)
	}

	// A second connection to the same room receives the backlog
	wsURL2 := "ws" + strings.TrimPrefix(srv.URL, "http") + "?room=e2e&username=bob"
	conn2, resp2, err := websocket.DefaultDialer.Dial(wsURL2, nil)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer func() { _ = conn2.Close() }()
	_ = resp2.Body.Close()

	_ = conn2.SetReadDeadline(time.Now().Add(2 * time.Second))
	var history Frame
	if err := conn2.ReadJSON(&history); err != nil {
		t.Fatalf("read history: %v", err)
	}
	if history.Type != FrameHistory || len(history.Messages) == 0 {
		t.Fatalf("expected non-empty history frame, got %+v", history)
	}
}
