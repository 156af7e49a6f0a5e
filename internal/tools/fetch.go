package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type HTTPFetchTool struct {
	TimeoutMS int
	// MaxBytes caps the body read; default 64 KiB.
	MaxBytes int
	// Client overrides the default client, mainly for tests.
	Client *http.Client
}

func (HTTPFetchTool) Name() string { return "http_fetch" }
func (HTTPFetchTool) Description() string {
	return "Fetches a URL over HTTP(S) and returns status and body text."
}
func (HTTPFetchTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"url":    map[string]any{"type": "string"},
		"method": map[string]any{"type": "string", "description": "default GET"},
		"body":   map[string]any{"type": "string", "description": "request body for POST/PUT"},
	}, "url")
}
func (HTTPFetchTool) Cacheable() bool { return true }

func (t HTTPFetchTool) Execute(ctx context.Context, args map[string]any) Result {
	rawURL := strings.TrimSpace(stringArg(args, "url"))
	if rawURL == "" {
		return errResult("http_fetch requires args.url (string)")
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return errResult("invalid url: %v", err)
	}
	method := strings.ToUpper(strings.TrimSpace(stringArg(args, "method")))
	if method == "" {
		method = http.MethodGet
	}

	client := t.Client
	if client == nil {
		timeout := time.Duration(t.TimeoutMS) * time.Millisecond
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, strings.NewReader(stringArg(args, "body")))
	if err != nil {
		return errResult("%v", err)
	}
	if stringArg(args, "body") != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return errResult("fetch failed: %v", err)
	}
	defer resp.Body.Close()

	maxBytes := t.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 65536
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBytes)))
	if err != nil {
		return errResult("read body: %v", err)
	}
	return Result{Output: fmt.Sprintf("status %d\n%s", resp.StatusCode, string(b))}
}
