package apiclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHeaderTransportFiltering(t *testing.T) {
	// Create test server that captures request headers
	var receivedHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header.Clone()
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"response":{}}`))
	}))
	defer server.Close()

	client := &http.Client{Transport: &HeaderTransport{Base: http.DefaultTransport}}

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/1/vehicles/1/wake_up", nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	// Set headers that should be filtered
	req.Header.Set("User-Agent", "custom-agent/1.0")
	req.Header.Set("X-Custom-Header", "should-be-filtered")
	req.Header.Set("Cookie", "session=secret")

	// Set headers that should pass through
	req.Header.Set("Authorization", "Bearer token123")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()

	if receivedHeaders.Get("X-Custom-Header") != "" {
		t.Errorf("X-Custom-Header should be filtered, got: %s", receivedHeaders.Get("X-Custom-Header"))
	}
	if receivedHeaders.Get("Cookie") != "" {
		t.Errorf("Cookie should be filtered, got: %s", receivedHeaders.Get("Cookie"))
	}

	if receivedHeaders.Get("Authorization") != "Bearer token123" {
		t.Errorf("Authorization should pass through, got: %s", receivedHeaders.Get("Authorization"))
	}
	if receivedHeaders.Get("Accept") != "application/json" {
		t.Errorf("Accept should pass through, got: %s", receivedHeaders.Get("Accept"))
	}
	if receivedHeaders.Get("User-Agent") != UserAgent {
		t.Errorf("User-Agent not set correctly, got: %s", receivedHeaders.Get("User-Agent"))
	}

	// The caller's request is left untouched
	if req.Header.Get("X-Custom-Header") != "should-be-filtered" {
		t.Errorf("original request was modified")
	}
}

func TestHeaderTransportNilBase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := &http.Client{Transport: &HeaderTransport{}}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, resp.StatusCode)
	}
}
