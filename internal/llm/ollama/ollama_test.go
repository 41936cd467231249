package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/triageworks/hound/pkg/llm"
	"go.uber.org/zap"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(Config{URL: srv.URL, Model: "test-model", Timeout: 5 * time.Second}, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestGenerate_Success(t *testing.T) {
	var gotBody generateRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(generateResponse{Model: "test-model", Response: "the verdict narrative", Done: true})
	})

	resp, err := p.Generate(context.Background(), "explain this anomaly")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "the verdict narrative" {
		t.Errorf("Content = %q, want the canned narrative", resp.Content)
	}
	if resp.Model != "test-model" {
		t.Errorf("Model = %q, want default from config", resp.Model)
	}
	if gotBody.Prompt != "explain this anomaly" {
		t.Errorf("request prompt = %q", gotBody.Prompt)
	}
	if gotBody.Stream == nil || *gotBody.Stream {
		t.Error("request did not disable streaming")
	}
}

func TestGenerate_ModelOverride(t *testing.T) {
	var gotBody generateRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(generateResponse{Response: "ok", Done: true})
	})

	if _, err := p.Generate(context.Background(), "x", llm.WithModel("other")); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if gotBody.Model != "other" {
		t.Errorf("request model = %q, want override", gotBody.Model)
	}
}

func TestGenerate_ModelNotFound(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "model 'missing' not found"})
	})

	_, err := p.Generate(context.Background(), "x")
	if !llm.IsModelNotFoundError(err) {
		t.Errorf("error = %v, want model-not-found", err)
	}
}

func TestGenerate_ServerError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := p.Generate(context.Background(), "x")
	if !llm.IsServerError(err) {
		t.Errorf("error = %v, want server error", err)
	}
}

func TestHeartbeat(t *testing.T) {
	healthy := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if err := healthy.Heartbeat(context.Background()); err != nil {
		t.Errorf("Heartbeat() error = %v, want nil", err)
	}

	down := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if err := down.Heartbeat(context.Background()); err == nil {
		t.Error("Heartbeat() = nil, want error")
	}
}
