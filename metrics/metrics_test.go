package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestObserveCommitAppearsInHandler(t *testing.T) {
	r := NewRegistry()
	r.ObserveCommit("created", 0.5)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "reversion_commits_total") {
		t.Fatalf("expected commits_total metric in output, got:\n%s", body)
	}
	if !strings.Contains(body, `result="created"`) {
		t.Fatalf("expected result label in output, got:\n%s", body)
	}
}

func TestObserveBlobPutDedupedSkipsBytes(t *testing.T) {
	r := NewRegistry()
	r.ObserveBlobPut(true, 1024)
	r.ObserveBlobPut(false, 2048)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "reversion_blob_bytes_written_total 2048") {
		t.Fatalf("expected only non-deduped bytes counted, got:\n%s", body)
	}
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	r.ObserveCommit("created", 1)
	r.ObserveBlobPut(false, 10)
	r.ObserveClean("tl1", 3)
	r.ObserveVerifyFinding("corrupt")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected nil registry handler to 404, got %d", w.Code)
	}
}

func TestObserveCleanSkipsZero(t *testing.T) {
	r := NewRegistry()
	r.ObserveClean("tl1", 0)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	if strings.Contains(w.Body.String(), `timeline="tl1"`) {
		t.Fatal("expected no series to be created for a zero-removal observation")
	}
}
