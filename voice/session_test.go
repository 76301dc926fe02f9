package voice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"crawlchat/audio"
)

type fakeRecorder struct {
	mu         sync.Mutex
	fragments  [][]byte
	startErr   error
	captureErr error
	ch         chan []byte
	closeOnce  sync.Once
}

func (r *fakeRecorder) Start(ctx context.Context) (<-chan []byte, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ch = make(chan []byte, len(r.fragments))
	r.closeOnce = sync.Once{}
	for _, f := range r.fragments {
		r.ch <- f
	}
	if r.captureErr != nil {
		r.closeOnce.Do(func() { close(r.ch) })
	}
	return r.ch, nil
}

func (r *fakeRecorder) Err() error {
	return r.captureErr
}

func (r *fakeRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil {
		r.closeOnce.Do(func() { close(r.ch) })
	}
	return nil
}

type fakePlayer struct {
	mu     sync.Mutex
	played [][]byte
}

func (p *fakePlayer) Play(ctx context.Context, audio []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, audio)
	return nil
}

var upgrader = websocket.Upgrader{}

func newVoiceServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/voice-chat"
}

func nextUpdate(t *testing.T, c *Client) Update {
	t.Helper()
	select {
	case u := <-c.Updates():
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for voice update")
		return Update{}
	}
}

func waitFor(t *testing.T, c *Client, match func(Update) bool) []Update {
	t.Helper()
	var seen []Update
	for {
		u := nextUpdate(t, c)
		seen = append(seen, u)
		if match(u) {
			return seen
		}
	}
}

func TestClientRoundTrip(t *testing.T) {
	serverDone := make(chan struct{})
	url := newVoiceServer(t, func(conn *websocket.Conn) {
		defer close(serverDone)

		conn.WriteJSON(map[string]string{"status": "ready"})

		mt, data, err := conn.ReadMessage()
		if err != nil || mt != websocket.BinaryMessage {
			t.Errorf("expected binary recording, got type %d err %v", mt, err)
			return
		}
		if string(data) != "chunk1chunk2" {
			t.Errorf("recording = %q", data)
		}

		conn.WriteJSON(map[string]string{"type": "transcription", "text": "what is crawling"})
		conn.WriteJSON(map[string]string{"type": "response", "text": "fetching pages"})
		conn.WriteMessage(websocket.BinaryMessage, []byte("MP3DATA"))

		_, ack, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read ack: %v", err)
			return
		}
		if string(ack) != `{"status":"complete"}` {
			t.Errorf("ack = %s", ack)
		}
	})

	rec := &fakeRecorder{fragments: [][]byte{[]byte("chunk1"), []byte("chunk2")}}
	player := &fakePlayer{}
	c := NewClient(url, rec, player)
	defer c.Close()

	seq, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	first := nextUpdate(t, c)
	if first.Seq != seq || first.Phase != PhaseRecording {
		t.Fatalf("first update = %+v", first)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	var playedSeen bool
	updates := waitFor(t, c, func(u Update) bool {
		if u.Phase == PhasePlaying {
			playedSeen = true
		}
		return playedSeen && u.Phase == PhaseIdle
	})

	var entries []Update
	for _, u := range updates {
		if u.Err != nil {
			t.Fatalf("unexpected error update: %v", u.Err)
		}
		if u.Role != "" {
			entries = append(entries, u)
		}
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 transcript entries, got %+v", entries)
	}
	if entries[0].Role != RoleUser || entries[0].Text != "what is crawling" {
		t.Errorf("user entry = %+v", entries[0])
	}
	if entries[1].Role != RoleAssistant || entries[1].Text != "fetching pages" || entries[1].Prompt != "what is crawling" {
		t.Errorf("assistant entry = %+v", entries[1])
	}

	select {
	case <-serverDone:
	case <-time.After(5 * time.Second):
		t.Fatal("server never received completion")
	}

	player.mu.Lock()
	defer player.mu.Unlock()
	if len(player.played) != 1 || string(player.played[0]) != "MP3DATA" {
		t.Errorf("played = %q", player.played)
	}
}

func TestClientUnexpectedMessageResets(t *testing.T) {
	url := newVoiceServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(map[string]string{"type": "response", "text": "too early"})
		conn.ReadMessage()
	})

	c := NewClient(url, &fakeRecorder{}, &fakePlayer{})
	defer c.Close()

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	updates := waitFor(t, c, func(u Update) bool { return u.Err != nil })
	last := updates[len(updates)-1]
	if !errors.Is(last.Err, ErrUnexpectedMessage) {
		t.Errorf("err = %v, want ErrUnexpectedMessage", last.Err)
	}
	if last.Phase != PhaseIdle {
		t.Errorf("phase = %s, want idle", last.Phase)
	}
}

func TestClientMalformedFrame(t *testing.T) {
	url := newVoiceServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
		conn.ReadMessage()
	})

	c := NewClient(url, &fakeRecorder{}, &fakePlayer{})
	defer c.Close()

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	updates := waitFor(t, c, func(u Update) bool { return u.Err != nil })
	if err := updates[len(updates)-1].Err; !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("err = %v, want ErrMalformedFrame", err)
	}
}

func TestClientRecorderFailure(t *testing.T) {
	url := newVoiceServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
	})

	denied := errors.New("microphone permission denied")
	c := NewClient(url, &fakeRecorder{startErr: denied}, &fakePlayer{})
	defer c.Close()

	if _, err := c.Start(context.Background()); !errors.Is(err, denied) {
		t.Fatalf("Start err = %v, want %v", err, denied)
	}
	if err := c.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop err = %v, want ErrNotRecording", err)
	}
}

func TestClientCaptureFailureResets(t *testing.T) {
	url := newVoiceServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(map[string]string{"status": "ready"})
		conn.ReadMessage()
	})

	c := NewClient(url, &fakeRecorder{captureErr: audio.ErrPermissionDenied}, &fakePlayer{})
	defer c.Close()

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	updates := waitFor(t, c, func(u Update) bool { return u.Err != nil })
	last := updates[len(updates)-1]
	if !errors.Is(last.Err, audio.ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", last.Err)
	}
	if last.Phase != PhaseIdle {
		t.Errorf("phase = %s, want idle", last.Phase)
	}
}

func TestClientCaptureCommandExits(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}

	url := newVoiceServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(map[string]string{"status": "ready"})
		conn.ReadMessage()
	})

	c := NewClient(url, audio.NewCommandRecorder("false", 100), &fakePlayer{})
	defer c.Close()

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	updates := waitFor(t, c, func(u Update) bool { return u.Err != nil || u.Phase == PhaseSending })
	last := updates[len(updates)-1]
	if last.Phase == PhaseSending {
		t.Fatal("exchange stalled in sending after capture failed")
	}
	if !errors.Is(last.Err, audio.ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", last.Err)
	}
	if last.Phase != PhaseIdle {
		t.Errorf("phase = %s, want idle", last.Phase)
	}
}

func TestClientDialFailure(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/voice-chat", &fakeRecorder{}, &fakePlayer{})
	if _, err := c.Start(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestClientRestartReplacesExchange(t *testing.T) {
	closed := make(chan struct{}, 2)
	url := newVoiceServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closed <- struct{}{}
				return
			}
		}
	})

	c := NewClient(url, &fakeRecorder{}, &fakePlayer{})
	defer c.Close()

	first, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if second <= first {
		t.Errorf("sequence did not advance: %d then %d", first, second)
	}

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("first connection was not closed by the restart")
	}

	waitFor(t, c, func(u Update) bool { return u.Seq == second && u.Phase == PhaseRecording })

	c.Cancel()
	if err := c.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop after Cancel = %v, want ErrNotRecording", err)
	}
}
