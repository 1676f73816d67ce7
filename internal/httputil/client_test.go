package httputil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStandardClient_SetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewStandardClient(&http.Client{Timeout: time.Second})
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if got != UserAgent {
		t.Errorf("User-Agent = %q, want %q", got, UserAgent)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "probe/1")
	resp, err = c.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if got != "probe/1" {
		t.Errorf("User-Agent = %q, want caller value", got)
	}
}

func TestNewStandardClient_NilUsesDefault(t *testing.T) {
	if c := NewStandardClient(nil); c.Client != http.DefaultClient {
		t.Error("expected http.DefaultClient")
	}
}

func TestMockHTTPClient_QueuedResponses(t *testing.T) {
	m := NewMockHTTPClient().
		AddBodyResponse(http.StatusOK, "image/jpeg", []byte{0xff, 0xd8}).
		AddResponse(http.StatusServiceUnavailable, "warming up").
		AddErrorResponse(errors.New("dial tcp: refused"))

	req, _ := http.NewRequest(http.MethodGet, "http://camera.local/snapshot.jpg", nil)

	resp, err := m.Do(req)
	if err != nil {
		t.Fatalf("first Do: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.Header.Get("Content-Type") != "image/jpeg" || len(body) != 2 {
		t.Errorf("unexpected first response %v %x", resp.Header, body)
	}

	resp, err = m.Do(req)
	if err != nil {
		t.Fatalf("second Do: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable || resp.Status != "503 Service Unavailable" {
		t.Errorf("status = %d %q", resp.StatusCode, resp.Status)
	}

	if _, err := m.Do(req); err == nil || err.Error() != "dial tcp: refused" {
		t.Errorf("third Do err = %v", err)
	}

	// Exhausted queue falls back to an empty 200.
	resp, err = m.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Errorf("fallback = %v, %v", resp, err)
	}

	if m.RequestCount() != 4 {
		t.Errorf("RequestCount = %d, want 4", m.RequestCount())
	}
	if m.GetRequest(0) != req || m.GetRequest(4) != nil || m.GetRequest(-1) != nil {
		t.Error("GetRequest returned unexpected values")
	}
}

func TestMockHTTPClient_DoFuncAndDefaultError(t *testing.T) {
	m := NewMockHTTPClient()
	m.DoFunc = func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusTeapot, Body: http.NoBody}, nil
	}
	req, _ := http.NewRequest(http.MethodGet, "http://camera.local/", nil)
	if resp, _ := m.Do(req); resp.StatusCode != http.StatusTeapot {
		t.Errorf("DoFunc not used, status %d", resp.StatusCode)
	}

	m.Reset()
	if m.RequestCount() != 0 {
		t.Error("Reset did not clear requests")
	}
	m.DefaultError = errors.New("offline")
	if _, err := m.Do(req); err == nil {
		t.Error("expected DefaultError")
	}
}
