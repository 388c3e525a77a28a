package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewFromEnvDisabled(t *testing.T) {
	t.Setenv("MNEMO_EMBED_PROVIDER", "")
	if p := NewFromEnv(); p != nil {
		t.Error("expected nil provider when none configured")
	}
}

func TestNewFromEnvOllamaDefaults(t *testing.T) {
	t.Setenv("MNEMO_EMBED_PROVIDER", "ollama")
	t.Setenv("MNEMO_EMBED_MODEL", "")

	p := NewFromEnv()
	o, ok := p.(*Ollama)
	if !ok {
		t.Fatalf("expected *Ollama, got %T", p)
	}
	if o.model != "nomic-embed-text" {
		t.Errorf("default model = %q, want nomic-embed-text", o.model)
	}
	if o.Dims() != 768 {
		t.Errorf("dims = %d, want 768", o.Dims())
	}
}

func TestOllamaMinilmDims(t *testing.T) {
	if got := NewOllama("all-minilm").Dims(); got != 384 {
		t.Errorf("dims = %d, want 384", got)
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"embedding": [0.1, 0.2, 0.3]}`))
	}))
	defer srv.Close()
	t.Setenv("OLLAMA_HOST", srv.URL)

	vec, err := NewOllama("nomic-embed-text").Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("got %d dims, want 3", len(vec))
	}
}

func TestOllamaEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()
	t.Setenv("OLLAMA_HOST", srv.URL)

	if _, err := NewOllama("nope").Embed(context.Background(), "hello"); err == nil {
		t.Error("expected error on non-200 response")
	}
}

func TestOpenAIEmbed(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data": [{"embedding": [0.5, 0.5]}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(srv.URL, "sk-test", "", 0)
	vec, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 2 {
		t.Errorf("got %d dims, want 2", len(vec))
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestOpenAIEmbedEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	if _, err := NewOpenAI(srv.URL, "", "", 0).Embed(context.Background(), "hello"); err == nil {
		t.Error("expected error on empty data")
	}
}
