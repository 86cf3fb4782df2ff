package lxd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"nathanbeddoewebdev/lxdm/internal/config"
	"nathanbeddoewebdev/lxdm/internal/domain"
)

// --- Test helpers ---

// callLog records requests and fake channel events in the order they happen.
type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *callLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func (l *callLog) count(entry string) int {
	n := 0
	for _, e := range l.snapshot() {
		if e == entry {
			n++
		}
	}
	return n
}

func (l *callLog) index(entry string) int {
	for i, e := range l.snapshot() {
		if e == entry {
			return i
		}
	}
	return -1
}

// newRouter creates a fake hypervisor. Handler keys are "METHOD /path";
// a key ending in "*" matches any path with that prefix. Every request is
// appended to the returned log.
func newRouter(t *testing.T, handlers map[string]http.HandlerFunc) (*httptest.Server, *callLog) {
	t.Helper()
	log := &callLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		log.add(key)

		if h, ok := handlers[key]; ok {
			h(w, r)
			return
		}
		for k, h := range handlers {
			if prefix, ok := strings.CutSuffix(k, "*"); ok && strings.HasPrefix(key, prefix) {
				h(w, r)
				return
			}
		}
		t.Errorf("unexpected request: %s", key)
		writeJSON(w, http.StatusNotFound, errorEnvelope(http.StatusNotFound, "not found"))
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(srv.Client())}, opts...)
	c, err := NewClient(config.Remote{Endpoint: srv.URL, ClientName: "test-host"}, opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	// Fake channels stay open until closed locally.
	c.outputGrace = 0
	return c
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func syncEnvelope(metadata any) map[string]any {
	return map[string]any{
		"type":        "sync",
		"status":      "Success",
		"status_code": 200,
		"metadata":    metadata,
	}
}

func asyncEnvelope(opID string, metadata any) map[string]any {
	if metadata == nil {
		metadata = map[string]any{"id": opID, "status": "Running", "status_code": 103}
	}
	return map[string]any{
		"type":        "async",
		"status":      "Operation created",
		"status_code": 100,
		"operation":   "/1.0/operations/" + opID,
		"metadata":    metadata,
	}
}

func errorEnvelope(code int, message string) map[string]any {
	return map[string]any{
		"type":       "error",
		"error_code": code,
		"error":      message,
	}
}

// operationJSON is the metadata of a finished or running operation.
func operationJSON(id string, statusCode int, metadata any) map[string]any {
	status := "Success"
	switch {
	case statusCode == 103:
		status = "Running"
	case statusCode >= 400:
		status = "Failure"
	}
	op := map[string]any{"id": id, "status": status, "status_code": statusCode}
	if metadata != nil {
		op["metadata"] = metadata
	}
	if statusCode >= 400 {
		op["err"] = "operation failed"
	}
	return op
}

// waitSucceeds answers every operation wait with success.
func waitSucceeds(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/1.0/operations/"), "/wait")
	writeJSON(w, http.StatusOK, syncEnvelope(operationJSON(id, 200, nil)))
}

func containerJSON(name, status string, ips ...map[string]any) map[string]any {
	if ips == nil {
		ips = []map[string]any{}
	}
	return map[string]any{
		"name":      name,
		"status":    map[string]any{"status": status, "ips": ips},
		"profiles":  []string{"default"},
		"ephemeral": false,
		"config":    map[string]string{"volatile.base_image": "abc123"},
	}
}

// recordingObserver captures operation notifications.
type recordingObserver struct {
	mu       sync.Mutex
	started  []domain.OperationRef
	finished []error
}

func (o *recordingObserver) OperationStarted(ref domain.OperationRef) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, ref)
}

func (o *recordingObserver) OperationFinished(_ domain.OperationRef, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, err)
}
