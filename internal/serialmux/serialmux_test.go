package serialmux

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

// localHostRequest creates an httptest request that appears to come from localhost.
// This bypasses tsweb.AllowDebugAccess which checks for loopback IPs.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestSubscribeUnsubscribe(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())

	id, ch := mux.Subscribe()
	if id == "" {
		t.Fatal("expected non-empty subscriber id")
	}
	if cap(ch) != SubscriberBuffer {
		t.Errorf("channel capacity = %d, want %d", cap(ch), SubscriberBuffer)
	}

	mux.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after Unsubscribe")
	}
	// A second unsubscribe is a no-op.
	mux.Unsubscribe(id)
}

func TestSendCommand_AppendsNewline(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	if err := mux.SendCommand("FMT JSON"); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if err := mux.SendCommand("STREAM ON\n"); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if got, want := string(port.GetWrittenData()), "FMT JSON\nSTREAM ON\n"; got != want {
		t.Errorf("written = %q, want %q", got, want)
	}
}

func TestSendCommand_WriteError(t *testing.T) {
	port := NewTestableSerialPort()
	port.WriteError = errors.New("boom")
	mux := NewSerialMux(port)

	if err := mux.SendCommand("RST"); err == nil {
		t.Error("expected error from failing port")
	}
}

func TestInitialize(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	mux.now = func() time.Time { return time.UnixMilli(1760000000123) }

	if err := mux.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(string(port.GetWrittenData()), "\n"), "\n")
	if lines[0] != "T=1760000000123" {
		t.Errorf("first command = %q, want clock sync", lines[0])
	}
	if len(lines) != len(StartupCommands)+1 {
		t.Fatalf("wrote %d commands, want %d", len(lines), len(StartupCommands)+1)
	}
	for i, cmd := range StartupCommands {
		if lines[i+1] != cmd {
			t.Errorf("command %d = %q, want %q", i+1, lines[i+1], cmd)
		}
	}
}

func TestInitialize_WrapsError(t *testing.T) {
	port := NewTestableSerialPort()
	want := errors.New("unplugged")
	port.WriteError = want
	mux := NewSerialMux(port)

	err := mux.Initialize()
	if !errors.Is(err, want) {
		t.Errorf("Initialize error = %v, want wrapped %v", err, want)
	}
}

func TestMonitor_FansOutLines(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("{\"t\":1}\n{\"t\":2}\n"))
	mux := NewSerialMux(port)

	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	if err := mux.Monitor(context.Background()); err != nil {
		t.Fatalf("Monitor returned error: %v", err)
	}

	for _, ch := range []chan string{a, b} {
		for _, want := range []string{`{"t":1}`, `{"t":2}`} {
			select {
			case got := <-ch:
				if got != want {
					t.Errorf("line = %q, want %q", got, want)
				}
			default:
				t.Fatalf("missing line %q", want)
			}
		}
	}
}

func TestMonitor_DropsForSlowSubscriber(t *testing.T) {
	port := NewTestableSerialPort()
	var sb strings.Builder
	for i := 0; i < SubscriberBuffer+5; i++ {
		sb.WriteString("line\n")
	}
	port.AddReadData([]byte(sb.String()))
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	if err := mux.Monitor(context.Background()); err != nil {
		t.Fatalf("Monitor returned error: %v", err)
	}
	if len(ch) != SubscriberBuffer {
		t.Errorf("buffered lines = %d, want %d", len(ch), SubscriberBuffer)
	}
}

func TestMonitor_ReadError(t *testing.T) {
	port := NewTestableSerialPort()
	want := errors.New("read failed")
	port.ReadError = want
	mux := NewSerialMux(port)

	if err := mux.Monitor(context.Background()); !errors.Is(err, want) {
		t.Errorf("Monitor error = %v, want %v", err, want)
	}
}

func TestMonitor_ContextCancel(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	mux.Close()
}

func TestClose_ClosesSubscribersAndPort(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	if err := mux.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected subscriber channel closed")
	}
	if !port.Closed {
		t.Error("expected port closed")
	}
}

func TestAttachAdminRoutes_SendCommandAPI(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	tests := []struct {
		name   string
		method string
		form   url.Values
		status int
	}{
		{"valid", http.MethodPost, url.Values{"command": {"ZONES 4X4"}}, http.StatusOK},
		{"empty", http.MethodPost, url.Values{"command": {"  "}}, http.StatusBadRequest},
		{"get", http.MethodGet, nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := localHostRequest(tt.method, "/debug/send-command-api", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			httpMux.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %q)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}

	if got := string(port.GetWrittenData()); got != "ZONES 4X4\n" {
		t.Errorf("written = %q", got)
	}
}

func TestAttachAdminRoutes_Tail(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	rec := httptest.NewRecorder()
	req := localHostRequest(http.MethodGet, "/debug/tail", nil)
	done := make(chan struct{})
	go func() {
		httpMux.ServeHTTP(rec, req)
		close(done)
	}()

	// Wait for the tail handler to subscribe.
	deadline := time.Now().Add(2 * time.Second)
	for {
		mux.subscriberMu.Lock()
		n := len(mux.subscribers)
		mux.subscriberMu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("tail handler never subscribed")
		}
		time.Sleep(time.Millisecond)
	}

	_, probe := mux.Subscribe()
	port.AddReadData([]byte("{\"mm\":[1]}\n"))
	select {
	case <-probe:
	case <-time.After(2 * time.Second):
		t.Fatal("line was not fanned out")
	}
	mux.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tail handler did not return")
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, ": ping\n\n") {
		t.Errorf("missing initial ping: %q", body)
	}
	if !strings.Contains(body, "data: {\"mm\":[1]}\n\n") {
		t.Errorf("missing tailed line: %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{`{"t":1,"w":2,"h":1,"mm":[100,200]}`, LineTypeFrame},
		{`  {"temp_c":41.5}`, LineTypeStatus},
		{`OK`, LineTypeUnknown},
		{``, LineTypeUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyLine(tt.line); got != tt.want {
			t.Errorf("ClassifyLine(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestDeviceStatus(t *testing.T) {
	var s DeviceStatus
	if s.Snapshot() != nil {
		t.Error("expected nil snapshot before any update")
	}
	if err := s.Update(`{"temp_c":41.5,"fw":"1.2"}`); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := s.Update(`{"temp_c":42}`); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := s.Update(`not json`); err == nil {
		t.Error("expected error for malformed status")
	}

	got := s.Snapshot()
	if got["temp_c"] != 42.0 || got["fw"] != "1.2" {
		t.Errorf("snapshot = %v", got)
	}
	got["fw"] = "mutated"
	if s.Snapshot()["fw"] != "1.2" {
		t.Error("snapshot is not a copy")
	}
}
