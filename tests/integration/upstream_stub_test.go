package integration

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// upstreamStub 模拟一个支持 If-Modified-Since 条件请求的静态文件上游，
// 记录每次请求的路径与条件头，便于断言刷新行为。
type upstreamStub struct {
	server *httptest.Server
	URL    string

	mu           sync.Mutex
	requests     []RecordedRequest
	objects      map[string][]byte
	lastModified time.Time
	status       int
}

// RecordedRequest 捕获每次请求的路径与 If-Modified-Since 头。
type RecordedRequest struct {
	Path            string
	IfModifiedSince string
}

func newUpstreamStub(t *testing.T) *upstreamStub {
	t.Helper()

	stub := &upstreamStub{
		objects:      make(map[string][]byte),
		lastModified: time.Now().Add(-time.Hour).UTC().Truncate(time.Second),
	}
	stub.server = httptest.NewServer(http.HandlerFunc(stub.handle))
	stub.URL = stub.server.URL
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *upstreamStub) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Path:            r.URL.Path,
		IfModifiedSince: r.Header.Get("If-Modified-Since"),
	})
	body, ok := s.objects[r.URL.Path]
	lastModified := s.lastModified
	forced := s.status
	s.mu.Unlock()

	if forced != 0 {
		w.WriteHeader(forced)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if since := r.Header.Get("If-Modified-Since"); since != "" {
		if t, err := http.ParseTime(since); err == nil && !lastModified.After(t) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set("Last-Modified", lastModified.Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// setObject 登记一个路径对应的内容，不改变上游侧的修改时间。
func (s *upstreamStub) setObject(path string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = body
}

// touch 把上游侧修改时间推进到当前时刻，模拟上游内容更新。
func (s *upstreamStub) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastModified = time.Now().UTC().Truncate(time.Second)
}

// forceStatus 让后续所有请求返回固定状态码，0 表示恢复正常行为。
func (s *upstreamStub) forceStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

func (s *upstreamStub) recorded() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}
