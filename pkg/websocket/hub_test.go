package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

func startHub(t *testing.T, origins []string) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(origins, zaptest.NewLogger(t))
	go hub.Run(ctx)

	r := mux.NewRouter()
	r.HandleFunc("/ws/incidents/{id}", hub.HandleWebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/incidents/"
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBroadcastReachesRoom(t *testing.T) {
	hub, base := startHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(base+"42", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitFor(t, func() bool { return hub.ClientCount("42") == 1 })

	hub.Broadcast("7", "quiz_answered", map[string]interface{}{"comment_id": "other"})
	hub.Broadcast("42", "quiz_answered", map[string]interface{}{"comment_id": "abc"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	data, ok := msg.Data.(map[string]interface{})
	if msg.Type != "quiz_answered" || !ok || data["comment_id"] != "abc" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount("42") == 0 })
}

func TestRejectsUnknownOrigin(t *testing.T) {
	_, base := startHub(t, []string{"https://fir.corp"})

	header := http.Header{"Origin": {"https://elsewhere.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(base+"42", header)
	if err == nil {
		t.Fatalf("expected the handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}

	header.Set("Origin", "https://fir.corp")
	conn, _, err := websocket.DefaultDialer.Dial(base+"42", header)
	if err != nil {
		t.Fatalf("dial from allowed origin: %v", err)
	}
	conn.Close()
}
