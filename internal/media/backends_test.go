package media

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nextlevelbuilder/goclaw/internal/config"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"text":"hello world","language":"en"}`))
	}))
	defer srv.Close()

	p := &Processor{cfg: config.MediaConfig{SpeechToText: config.MediaBackendConfig{URL: srv.URL}}}
	raw, err := p.transcribe(context.Background(), []byte("fake-audio-bytes"))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got := string(raw); got == "" {
		t.Fatalf("expected non-empty output")
	}
}

func TestAnalyzeImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"description":"a cat on a chair","objects":["cat","chair"],"text":""}`))
	}))
	defer srv.Close()

	p := &Processor{cfg: config.MediaConfig{Vision: config.MediaBackendConfig{URL: srv.URL}}}
	raw, err := p.analyzeImage(context.Background(), []byte("fake-image-bytes"))
	if err != nil {
		t.Fatalf("analyzeImage: %v", err)
	}
	var parsed visionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if parsed.Description != "a cat on a chair" || len(parsed.Objects) != 2 {
		t.Fatalf("unexpected parsed output: %+v", parsed)
	}
}

func TestExtractDocument_FillsWordCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"four little words here"}`))
	}))
	defer srv.Close()

	p := &Processor{cfg: config.MediaConfig{DocumentExtraction: config.MediaBackendConfig{URL: srv.URL}}}
	raw, err := p.extractDocument(context.Background(), []byte("fake-doc-bytes"))
	if err != nil {
		t.Fatalf("extractDocument: %v", err)
	}
	var parsed documentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if parsed.WordCount != 4 {
		t.Fatalf("expected word count 4, got %d", parsed.WordCount)
	}
}

func TestPostMultipart_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := postMultipart(context.Background(), config.MediaBackendConfig{URL: srv.URL}, "/x", "f", []byte("x"))
	if err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestWordCount(t *testing.T) {
	cases := map[string]int{
		"":                 0,
		"one":              1,
		"two words":        2,
		"  leading spaces": 2,
		"multi\nline\ttext": 3,
	}
	for input, want := range cases {
		if got := wordCount(input); got != want {
			t.Errorf("wordCount(%q) = %d, want %d", input, got, want)
		}
	}
}
