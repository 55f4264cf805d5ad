package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	// Should not panic
	c.IncConnectAttempt()
	c.IncOpen()
	c.IncReconnectScheduled()
	c.IncMessageReceived("hp_update")
	c.IncMessageDropped()
	c.IncListenerPanic()
	c.SetConnectionState(2)
	c.ObserveUserFetch(FetchOK)
	c.IncCacheHit()
	c.IncForcedLogout()
}

func TestCollector_Unregistered(t *testing.T) {
	c := NewCollector(nil)
	c.IncOpen()
	c.ObserveUserFetch(FetchError)
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	c := NewCollector(reg)

	c.IncConnectAttempt()
	c.IncConnectAttempt()
	c.IncMessageReceived("hp_update")
	c.ObserveUserFetch(FetchUnauthorized)
	c.IncListenerPanic()
	c.SetConnectionState(2)

	srv := httptest.NewServer(NewServeMux(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	body := string(raw)

	wants := []string{
		"moonlink_live_connect_attempts_total 2",
		`moonlink_live_messages_received_total{type="hp_update"} 1`,
		`moonlink_session_user_fetches_total{result="unauthorized"} 1`,
		"moonlink_live_connection_state 2",
		"moonlink_live_listener_panics_total 1",
		"go_goroutines",
	}
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNewCollector_DoubleRegisterPanics(t *testing.T) {
	reg := NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("registering twice should panic")
		}
	}()
	NewCollector(reg)
}
