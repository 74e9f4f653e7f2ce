package mirror

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mirror-hub/mirror-hub/internal/source"
	"github.com/mirror-hub/mirror-hub/internal/store"
)

type fetchCall struct {
	key           string
	lastKnownGood time.Time
}

// fakeSource 按 respond 回调应答拉取请求，并记录每次调用的条件键。
type fakeSource struct {
	window  time.Duration
	respond func(key string, sink io.Writer, lastKnownGood time.Time) int

	mu    sync.Mutex
	calls []fetchCall
}

func (s *fakeSource) ValidityWindow() time.Duration {
	return s.window
}

func (s *fakeSource) Fetch(ctx context.Context, key string, sink io.Writer, lastKnownGood time.Time) int {
	s.mu.Lock()
	s.calls = append(s.calls, fetchCall{key: key, lastKnownGood: lastKnownGood})
	s.mu.Unlock()
	return s.respond(key, sink, lastKnownGood)
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeSource) call(t *testing.T, idx int) fetchCall {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx >= len(s.calls) {
		t.Fatalf("expected at least %d fetch calls, got %d", idx+1, len(s.calls))
	}
	return s.calls[idx]
}

type recordingNotifier struct {
	mu    sync.Mutex
	ready []string
}

func (n *recordingNotifier) ObjectReady(key string) {
	n.mu.Lock()
	n.ready = append(n.ready, key)
	n.mu.Unlock()
}

func (n *recordingNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.ready...)
}

type harness struct {
	store    store.Store
	source   *fakeSource
	notifier *recordingNotifier
	orch     *Orchestrator
}

func newHarness(t *testing.T, src *fakeSource, keys ...string) *harness {
	t.Helper()

	st, err := store.NewFileStore(t.TempDir(), "tiles")
	if err != nil {
		t.Fatalf("new store error: %v", err)
	}
	reg, err := NewRegistry("tiles", st, src)
	if err != nil {
		t.Fatalf("new registry error: %v", err)
	}
	for _, key := range keys {
		if err := reg.Add(key, ""); err != nil {
			t.Fatalf("add entry error: %v", err)
		}
	}

	notifier := &recordingNotifier{}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	orch, err := NewOrchestrator(reg, notifier, logger)
	if err != nil {
		t.Fatalf("new orchestrator error: %v", err)
	}
	return &harness{store: st, source: src, notifier: notifier, orch: orch}
}

// seedCommitted 写入一份已提交副本并把修改时间调整为 age 之前。
func (h *harness) seedCommitted(t *testing.T, key string, body []byte, age time.Duration) {
	t.Helper()
	w, err := h.store.OpenWrite(key, true)
	if err != nil {
		t.Fatalf("open write error: %v", err)
	}
	if _, err := w.Write(body); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close error: %v", err)
	}
	if err := h.store.Commit(key); err != nil {
		t.Fatalf("commit error: %v", err)
	}
	past := time.Now().Add(-age)
	if err := os.Chtimes(h.store.LocationHint(key), past, past); err != nil {
		t.Fatalf("chtimes error: %v", err)
	}
}

func (h *harness) committedBody(t *testing.T, key string) []byte {
	t.Helper()
	r, err := h.store.OpenRead(key)
	if err != nil {
		t.Fatalf("open read error: %v", err)
	}
	defer r.Close()
	body, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	return body
}

// drain 反复轮询直到所有在途任务被收割。
func (h *harness) drain(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.orch.CompletionPoll()
		if h.orch.PendingFetches() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("fetch tasks did not finish in time")
}

func respondWith(status int, body []byte) func(string, io.Writer, time.Time) int {
	return func(_ string, sink io.Writer, _ time.Time) int {
		if status >= 200 && status < 300 {
			_, _ = sink.Write(body)
		}
		return status
	}
}

func TestScanFetchesMissingEntryUnconditionally(t *testing.T) {
	src := &fakeSource{window: time.Hour, respond: respondWith(http.StatusOK, []byte("tile-bytes"))}
	h := newHarness(t, src, "map.png")

	h.orch.ValidityScan()
	h.drain(t)

	if got := src.callCount(); got != 1 {
		t.Fatalf("expected exactly one fetch, got %d", got)
	}
	if !src.call(t, 0).lastKnownGood.IsZero() {
		t.Fatalf("missing entry must be fetched without a conditional key")
	}
	if string(h.committedBody(t, "map.png")) != "tile-bytes" {
		t.Fatalf("committed body mismatch")
	}
	if events := h.notifier.events(); len(events) != 1 || events[0] != "map.png" {
		t.Fatalf("expected exactly one ready notification for map.png, got %v", events)
	}

	state := h.orch.Snapshot()[0]
	if state.LastStatus != http.StatusOK {
		t.Fatalf("last status should record 200, got %d", state.LastStatus)
	}
	if !state.Processed {
		t.Fatalf("processed latch should be set after commit")
	}
}

func TestScanFetchesStaleEntryConditionally(t *testing.T) {
	src := &fakeSource{window: time.Hour, respond: respondWith(http.StatusNotModified, nil)}
	h := newHarness(t, src, "eph.txt")
	h.seedCommitted(t, "eph.txt", []byte("old"), 2*time.Hour)

	seeded, err := h.store.Stat("eph.txt")
	if err != nil {
		t.Fatalf("stat error: %v", err)
	}

	h.orch.ValidityScan()
	h.drain(t)

	call := src.call(t, 0)
	if call.lastKnownGood.IsZero() {
		t.Fatalf("stale entry must carry a conditional key")
	}
	if !call.lastKnownGood.Equal(seeded.ModTime) {
		t.Fatalf("conditional key should equal persisted timestamp: expected %v got %v", seeded.ModTime, call.lastKnownGood)
	}
}

func TestScanNotifiesFreshEntryWithoutNetwork(t *testing.T) {
	src := &fakeSource{window: time.Hour, respond: respondWith(http.StatusOK, []byte("x"))}
	h := newHarness(t, src, "eph.txt")
	h.seedCommitted(t, "eph.txt", []byte("cached"), 10*time.Minute)

	h.orch.ValidityScan()

	if src.callCount() != 0 {
		t.Fatalf("fresh entry must not touch the network")
	}
	if h.orch.PendingFetches() != 0 {
		t.Fatalf("fresh entry must not schedule a fetch")
	}
	if events := h.notifier.events(); len(events) != 1 || events[0] != "eph.txt" {
		t.Fatalf("expected immediate ready notification, got %v", events)
	}
	if !h.orch.Snapshot()[0].Processed {
		t.Fatalf("processed latch should be set by the cache-hit path")
	}
}

func TestNotificationLatchIsIdempotent(t *testing.T) {
	src := &fakeSource{window: time.Hour, respond: respondWith(http.StatusOK, []byte("x"))}
	h := newHarness(t, src, "eph.txt")
	h.seedCommitted(t, "eph.txt", []byte("cached"), 10*time.Minute)

	h.orch.ValidityScan()
	h.orch.ValidityScan()
	h.orch.CompletionPoll()
	h.orch.ValidityScan()

	if events := h.notifier.events(); len(events) != 1 {
		t.Fatalf("fresh unfetched entry must be announced exactly once, got %v", events)
	}
}

func TestNotModifiedExtendsValidityWithoutMutation(t *testing.T) {
	src := &fakeSource{window: time.Hour, respond: respondWith(http.StatusNotModified, nil)}
	h := newHarness(t, src, "eph.txt")
	h.seedCommitted(t, "eph.txt", []byte("cached"), 10*time.Minute)

	// 第一轮扫描通过缓存命中路径置位锁存。
	h.orch.ValidityScan()
	if len(h.notifier.events()) != 1 {
		t.Fatalf("expected cache-hit notification first")
	}

	// 把副本调成过期，再验证 not-modified 路径。
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(h.store.LocationHint("eph.txt"), past, past); err != nil {
		t.Fatalf("chtimes error: %v", err)
	}

	h.orch.ValidityScan()
	h.drain(t)

	if string(h.committedBody(t, "eph.txt")) != "cached" {
		t.Fatalf("not-modified must not alter the committed body")
	}
	info, err := h.store.Stat("eph.txt")
	if err != nil {
		t.Fatalf("stat error: %v", err)
	}
	if time.Since(info.ModTime) > time.Minute {
		t.Fatalf("not-modified should refresh the persisted timestamp, got %v", info.ModTime)
	}
	if events := h.notifier.events(); len(events) != 1 {
		t.Fatalf("already-processed entry must not be announced again on 304, got %v", events)
	}
	if h.orch.Snapshot()[0].LastStatus != http.StatusNotModified {
		t.Fatalf("last status should record 304")
	}
}

func TestNotModifiedAnnouncesUnprocessedEntry(t *testing.T) {
	src := &fakeSource{window: time.Hour, respond: respondWith(http.StatusNotModified, nil)}
	h := newHarness(t, src, "eph.txt")
	h.seedCommitted(t, "eph.txt", []byte("cached"), 2*time.Hour)

	// 副本一开始就是过期的：通知只能来自 not-modified 完成路径。
	h.orch.ValidityScan()
	h.drain(t)

	if events := h.notifier.events(); len(events) != 1 || events[0] != "eph.txt" {
		t.Fatalf("304 on an unprocessed entry must announce it, got %v", events)
	}
}

func TestSuccessfulRefetchAnnouncesAgain(t *testing.T) {
	src := &fakeSource{window: time.Hour, respond: respondWith(http.StatusOK, []byte("v2"))}
	h := newHarness(t, src, "eph.txt")
	h.seedCommitted(t, "eph.txt", []byte("v1"), 10*time.Minute)

	h.orch.ValidityScan() // cache hit, first announcement

	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(h.store.LocationHint("eph.txt"), past, past); err != nil {
		t.Fatalf("chtimes error: %v", err)
	}

	h.orch.ValidityScan()
	h.drain(t)

	if string(h.committedBody(t, "eph.txt")) != "v2" {
		t.Fatalf("successful refetch should replace the body")
	}
	if events := h.notifier.events(); len(events) != 2 {
		t.Fatalf("new committed content is a new become-usable transition, got %v", events)
	}
}

func TestFailedFetchLeavesEntryStale(t *testing.T) {
	src := &fakeSource{window: time.Hour, respond: respondWith(source.StatusTransportError, nil)}
	h := newHarness(t, src, "eph.txt")
	h.seedCommitted(t, "eph.txt", []byte("cached"), 2*time.Hour)

	h.orch.ValidityScan()
	h.drain(t)

	if string(h.committedBody(t, "eph.txt")) != "cached" {
		t.Fatalf("failure must not alter the committed body")
	}
	if len(h.notifier.events()) != 0 {
		t.Fatalf("failure must not announce readiness")
	}
	state := h.orch.Snapshot()[0]
	if state.LastStatus != source.StatusTransportError {
		t.Fatalf("last status should record the transport sentinel, got %d", state.LastStatus)
	}
	if state.Processed {
		t.Fatalf("processed latch must stay clear on failure")
	}

	// 副本仍然过期，下一轮扫描自然重试。
	h.orch.ValidityScan()
	h.drain(t)
	if got := src.callCount(); got != 2 {
		t.Fatalf("stale entry should be retried on the next scan, got %d fetches", got)
	}
}

func TestFailureDiscardsTemporaryTarget(t *testing.T) {
	src := &fakeSource{window: time.Hour, respond: func(_ string, sink io.Writer, _ time.Time) int {
		_, _ = sink.Write([]byte("partial"))
		return http.StatusBadGateway
	}}
	h := newHarness(t, src, "map.png")

	h.orch.ValidityScan()
	h.drain(t)

	if h.store.Exists("map.png") {
		t.Fatalf("failure must not commit anything")
	}
	final := h.store.LocationHint("map.png")
	if _, err := os.Stat(filepath.Join(filepath.Dir(final), ".map.png")); err == nil {
		t.Fatalf("temporary target should be discarded on failure")
	}
}

func TestScanSkipsEntryWithFetchInFlight(t *testing.T) {
	release := make(chan struct{})
	src := &fakeSource{window: time.Hour, respond: func(_ string, sink io.Writer, _ time.Time) int {
		<-release
		_, _ = sink.Write([]byte("slow"))
		return http.StatusOK
	}}
	h := newHarness(t, src, "map.png")

	h.orch.ValidityScan()
	h.orch.ValidityScan() // second scan while the fetch is still running

	if got := h.orch.PendingFetches(); got != 1 {
		t.Fatalf("in-flight entry must not be rescheduled, pending=%d", got)
	}

	close(release)
	h.drain(t)

	if got := src.callCount(); got != 1 {
		t.Fatalf("expected a single fetch, got %d", got)
	}
	if events := h.notifier.events(); len(events) != 1 {
		t.Fatalf("expected one notification after completion, got %v", events)
	}
}

func TestCompletionPollDoesNotBlockOnRunningFetch(t *testing.T) {
	release := make(chan struct{})
	src := &fakeSource{window: time.Hour, respond: func(string, io.Writer, time.Time) int {
		<-release
		return http.StatusOK
	}}
	h := newHarness(t, src, "map.png")

	h.orch.ValidityScan()

	done := make(chan struct{})
	go func() {
		h.orch.CompletionPoll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("CompletionPoll must not block on an unfinished task")
	}
	if h.orch.PendingFetches() != 1 {
		t.Fatalf("unfinished task should remain pending")
	}

	close(release)
	h.drain(t)
}

type writeFailingStore struct {
	store.Store
}

func (s writeFailingStore) OpenWrite(key string, temp bool) (io.WriteCloser, error) {
	return nil, errors.New("disk full")
}

func TestTempOpenFailureAbandonsFetch(t *testing.T) {
	src := &fakeSource{window: time.Hour, respond: respondWith(http.StatusOK, []byte("x"))}

	base, err := store.NewFileStore(t.TempDir(), "tiles")
	if err != nil {
		t.Fatalf("new store error: %v", err)
	}
	reg, err := NewRegistry("tiles", writeFailingStore{base}, src)
	if err != nil {
		t.Fatalf("new registry error: %v", err)
	}
	if err := reg.Add("map.png", ""); err != nil {
		t.Fatalf("add entry error: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	notifier := &recordingNotifier{}
	orch, err := NewOrchestrator(reg, notifier, logger)
	if err != nil {
		t.Fatalf("new orchestrator error: %v", err)
	}

	orch.ValidityScan()

	if orch.PendingFetches() != 0 {
		t.Fatalf("failed temp open must not schedule a task")
	}
	if src.callCount() != 0 {
		t.Fatalf("failed temp open must not touch the network")
	}
	if len(notifier.events()) != 0 {
		t.Fatalf("failed temp open must not announce readiness")
	}

	// 条目保持可调度状态，后续扫描继续重试。
	orch.ValidityScan()
	if orch.Snapshot()[0].Fetching {
		t.Fatalf("entry must not be stuck in fetching state")
	}
}

func TestRegistryRejectsDuplicateKeys(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir(), "tiles")
	if err != nil {
		t.Fatalf("new store error: %v", err)
	}
	reg, err := NewRegistry("tiles", st, &fakeSource{window: time.Hour, respond: respondWith(http.StatusOK, nil)})
	if err != nil {
		t.Fatalf("new registry error: %v", err)
	}
	if err := reg.Add("map.png", "Map"); err != nil {
		t.Fatalf("add error: %v", err)
	}
	if err := reg.Add("map.png", "Map again"); err == nil {
		t.Fatalf("duplicate key must be rejected")
	}
	if err := reg.Add("", ""); err == nil {
		t.Fatalf("empty key must be rejected")
	}
}
