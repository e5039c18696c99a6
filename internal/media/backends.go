package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/config"
)

const defaultBackendTimeoutSeconds = 30

// postMultipart uploads data as a "file" form field to cfg.URL+endpoint and
// returns the raw JSON response body, grounded on
// internal/channels/telegram/stt.go's proxy-call idiom.
func postMultipart(ctx context.Context, cfg config.MediaBackendConfig, endpoint, filename string, data []byte) ([]byte, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("media: create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("media: write form bytes: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("media: close multipart writer: %w", err)
	}

	timeoutSec := cfg.TimeoutSeconds
	if timeoutSec <= 0 {
		timeoutSec = defaultBackendTimeoutSeconds
	}
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	url := cfg.URL + endpoint
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("media: build request to %q: %w", url, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media: request to %q failed: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("media: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media: upstream %q returned %d: %s", url, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// transcribeSpeechResponse is the speech-to-text backend's wire shape.
type transcribeSpeechResponse struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

func (p *Processor) transcribe(ctx context.Context, audio []byte) (json.RawMessage, error) {
	raw, err := postMultipart(ctx, p.cfg.SpeechToText, "/transcribe", "audio", audio)
	if err != nil {
		return nil, err
	}
	var parsed transcribeSpeechResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("media: parse speech-to-text response: %w", err)
	}
	return json.Marshal(parsed)
}

// visionResponse is the vision backend's wire shape (spec §4.5
// "image_json → {description, objects[], text}").
type visionResponse struct {
	Description string   `json:"description"`
	Objects     []string `json:"objects"`
	Text        string   `json:"text"`
}

func (p *Processor) analyzeImage(ctx context.Context, image []byte) (json.RawMessage, error) {
	raw, err := postMultipart(ctx, p.cfg.Vision, "/analyze", "image", image)
	if err != nil {
		return nil, err
	}
	var parsed visionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("media: parse vision response: %w", err)
	}
	return json.Marshal(parsed)
}

// documentResponse is the document-extraction backend's wire shape (spec
// §4.5 "ocr_text → {text, page_count?, word_count}").
type documentResponse struct {
	Text      string `json:"text"`
	PageCount int    `json:"page_count,omitempty"`
	WordCount int    `json:"word_count"`
}

func (p *Processor) extractDocument(ctx context.Context, doc []byte) (json.RawMessage, error) {
	raw, err := postMultipart(ctx, p.cfg.DocumentExtraction, "/extract", "document", doc)
	if err != nil {
		return nil, err
	}
	var parsed documentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("media: parse document-extraction response: %w", err)
	}
	if parsed.WordCount == 0 && parsed.Text != "" {
		parsed.WordCount = wordCount(parsed.Text)
	}
	return json.Marshal(parsed)
}

func wordCount(s string) int {
	count := 0
	inWord := false
	for _, r := range s {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !isSpace && !inWord {
			count++
			inWord = true
		} else if isSpace {
			inWord = false
		}
	}
	return count
}
