package relay

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const validBatch = `{"metadata":{"user":"u\n","color":"#800080","extra":"\n","env_id":"r:0:1\n"},"coords":[[1,2,3]]}`

func startRelay(t *testing.T, cfg Config) (*Server, *httptest.Server, string) {
	t.Helper()
	s, err := NewServer(cfg, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRelay_FansOutValidBatches(t *testing.T) {
	s, _, base := startRelay(t, Config{})

	viewer, _, err := websocket.DefaultDialer.Dial(base+"/watch", nil)
	if err != nil {
		t.Fatalf("dial watch: %v", err)
	}
	defer viewer.Close()
	waitFor(t, "viewer registration", func() bool { return s.Stats().Viewers == 1 })

	pub, _, err := websocket.DefaultDialer.Dial(base+"/broadcast", nil)
	if err != nil {
		t.Fatalf("dial broadcast: %v", err)
	}
	defer pub.Close()
	for _, m := range []string{`{"coords":`, `{"metadata":{},"coords":[]}`, validBatch} {
		if err := pub.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
			t.Fatal(err)
		}
	}

	_ = viewer.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, got, err := viewer.ReadMessage()
	if err != nil {
		t.Fatalf("viewer read: %v", err)
	}
	if string(got) != validBatch {
		t.Fatalf("viewer got %s", got)
	}

	waitFor(t, "receive counters", func() bool { return s.Stats().Received == 3 })
	st := s.Stats()
	if st.Forwarded != 1 || st.Dropped["E_BAD_JSON"] != 1 || st.Dropped["E_SCHEMA"] != 1 || st.Publishers != 1 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestRelay_OversizedBatchClosesPublisher(t *testing.T) {
	s, _, base := startRelay(t, Config{MaxMessageBytes: 64})
	pub, _, err := websocket.DefaultDialer.Dial(base+"/broadcast", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()
	if err := pub.WriteMessage(websocket.TextMessage, []byte(validBatch)); err != nil {
		t.Fatal(err)
	}
	_ = pub.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = pub.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseMessageTooBig) {
		t.Fatalf("err=%v want close 1009", err)
	}
	waitFor(t, "too-large drop", func() bool { return s.Stats().Dropped["E_TOO_LARGE"] == 1 })
}

func TestOffer_DropsOldest(t *testing.T) {
	ch := make(chan []byte, 2)
	if offer(ch, []byte("a")) || offer(ch, []byte("b")) {
		t.Fatalf("unexpected eviction")
	}
	if !offer(ch, []byte("c")) {
		t.Fatalf("expected eviction")
	}
	if string(<-ch) != "b" || string(<-ch) != "c" {
		t.Fatalf("queue order wrong")
	}
}

func TestRelay_HealthAndMetrics(t *testing.T) {
	_, srv, _ := startRelay(t, Config{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz=%d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{
		"pokered_relay_viewers 0",
		`pokered_relay_dropped_total{reason="E_QUEUE_FULL"} 0`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	if !isLoopbackRemote("127.0.0.1:5000") || !isLoopbackRemote("[::1]:80") {
		t.Fatalf("loopback not detected")
	}
	if isLoopbackRemote("10.0.0.2:5000") || isLoopbackRemote("garbage") {
		t.Fatalf("non-loopback accepted")
	}
}
