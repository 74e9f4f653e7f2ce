package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// NewHTTPSource 构建 HTTP(S) 来源。baseURL 为对象键的前缀地址，
// window 是该来源对所有对象声明的新鲜度窗口。
func NewHTTPSource(client *http.Client, baseURL string, window time.Duration) (Source, error) {
	if client == nil {
		return nil, errors.New("http client required")
	}
	if window <= 0 {
		return nil, errors.New("validity window must be positive")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported upstream scheme: %s", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("upstream missing host: %s", baseURL)
	}

	return &httpSource{
		client: client,
		base:   parsed,
		window: window,
	}, nil
}

type httpSource struct {
	client *http.Client
	base   *url.URL
	window time.Duration
}

func (s *httpSource) ValidityWindow() time.Duration {
	return s.window
}

// Fetch 执行（条件）GET。lastKnownGood 非零时携带 If-Modified-Since，
// 让远端可以用 304 告知未变更。任何传输层错误都被折叠为 StatusTransportError，
// 不会有 error 穿过 Fetch 边界。
func (s *httpSource) Fetch(ctx context.Context, key string, sink io.Writer, lastKnownGood time.Time) int {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base.JoinPath(key).String(), nil)
	if err != nil {
		return StatusTransportError
	}
	if !lastKnownGood.IsZero() {
		req.Header.Set("If-Modified-Since", lastKnownGood.UTC().Format(http.TimeFormat))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return StatusTransportError
	}
	defer resp.Body.Close()

	if !IsSuccess(resp.StatusCode) {
		return resp.StatusCode
	}

	if _, err := io.Copy(sink, resp.Body); err != nil {
		return StatusTransportError
	}
	return resp.StatusCode
}
