package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mirror-hub/mirror-hub/internal/logging"
	"github.com/mirror-hub/mirror-hub/internal/source"
	"github.com/mirror-hub/mirror-hub/internal/store"
)

// Orchestrator 驱动单个注册表的刷新流程：周期性有效性扫描决定哪些对象需要
// 拉取，拉取任务各自在独立 goroutine 中执行，完成轮询消费结果并发出就绪通知。
//
// 互斥锁只覆盖簿记（读写注册表、追加/收割 pending 列表），从不跨越网络或
// 文件 I/O。拉取任务在派发时拿到字段快照，执行期间不再读注册表。
type Orchestrator struct {
	mu       sync.Mutex
	registry *Registry
	notifier Notifier
	logger   *logrus.Logger
	pending  []*fetchTask
}

// fetchTask 把一次在途拉取与对象键关联起来。done 关闭即任务结束；
// result 在成功路径（提交或 not-modified）为对象键，本地 I/O 失败时为空。
type fetchTask struct {
	key    string
	done   chan struct{}
	status int
	result string
	err    error
}

// NewOrchestrator 构建调度器。notifier 与 logger 不能为空。
func NewOrchestrator(registry *Registry, notifier Notifier, logger *logrus.Logger) (*Orchestrator, error) {
	if registry == nil {
		return nil, errors.New("registry required")
	}
	if notifier == nil {
		return nil, errors.New("notifier required")
	}
	if logger == nil {
		return nil, errors.New("logger required")
	}

	return &Orchestrator{
		registry: registry,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// Registry 返回调度器独占的注册表。
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// ValidityScan 遍历注册表，对缺失/过期对象派发拉取任务，对新鲜且从未
// 宣告过的对象立即发出就绪通知。所有失败都被就地吸收：本地 I/O 错误只产生
// 诊断日志，对象保持过期状态，下一轮扫描自然重试。
func (o *Orchestrator) ValidityScan() {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := o.registry.Store()
	window := o.registry.Source().ValidityWindow()

	for _, key := range o.registry.keys() {
		entry := o.registry.lookup(key)
		if entry.fetching {
			// 上一次拉取还在途，跳过本轮调度。
			continue
		}

		info, err := st.Stat(key)
		switch {
		case errors.Is(err, store.ErrNotFound):
			o.dispatch(entry, time.Time{})
		case err != nil:
			o.logger.WithError(err).
				WithFields(logging.ObjectFields(o.registry.Name(), key, "validity_scan")).
				Warn("stat_failed")
		case time.Since(info.ModTime) > window:
			o.dispatch(entry, info.ModTime)
		case !entry.processed:
			// 本地副本仍然新鲜：不碰网络，直接宣告就绪。
			o.announce(entry)
		}
	}
}

// dispatch 打开暂存写入流并启动拉取任务。打开失败意味着本轮放弃该对象，
// 不会有任务进入 pending 列表。
func (o *Orchestrator) dispatch(entry *Entry, lastKnownGood time.Time) {
	sink, err := o.registry.Store().OpenWrite(entry.SourceKey, true)
	if err != nil {
		o.logger.WithError(err).
			WithFields(logging.ObjectFields(o.registry.Name(), entry.SourceKey, "validity_scan")).
			Warn("temp_open_failed")
		return
	}

	task := &fetchTask{
		key:  entry.SourceKey,
		done: make(chan struct{}),
	}
	entry.fetching = true
	o.pending = append(o.pending, task)

	conditional := !lastKnownGood.IsZero()
	o.logger.WithFields(logging.FetchFields(o.registry.Name(), entry.SourceKey, conditional)).
		Debug("fetch_dispatched")

	go o.runFetch(task, sink, lastKnownGood)
}

// runFetch 在独立 goroutine 中执行拉取并应用提交策略。任务只使用派发时
// 快照的 key/lastKnownGood，不读注册表。
func (o *Orchestrator) runFetch(task *fetchTask, sink io.WriteCloser, lastKnownGood time.Time) {
	defer close(task.done)

	st := o.registry.Store()
	task.status = o.registry.Source().Fetch(context.Background(), task.key, sink, lastKnownGood)
	closeErr := sink.Close()

	switch {
	case source.IsSuccess(task.status):
		if closeErr != nil {
			task.err = fmt.Errorf("close temp: %w", closeErr)
			_ = st.DiscardTemp(task.key)
			return
		}
		if err := st.Commit(task.key); err != nil {
			task.err = fmt.Errorf("commit: %w", err)
			_ = st.DiscardTemp(task.key)
			return
		}
		task.result = task.key
	case source.IsNotModified(task.status):
		_ = st.DiscardTemp(task.key)
		if err := st.TouchValidity(task.key, 0); err != nil {
			task.err = fmt.Errorf("touch validity: %w", err)
			return
		}
		task.result = task.key
	default:
		// 失败结局：丢弃暂存，已提交副本保持原样。
		_ = st.DiscardTemp(task.key)
		task.result = task.key
	}
}

// CompletionPoll 收割已完成的拉取任务。未完成的任务原样保留到下一轮，
// 调用方永远不会被在途任务阻塞；已消费的任务在本轮被丢弃。
func (o *Orchestrator) CompletionPoll() {
	o.mu.Lock()
	defer o.mu.Unlock()

	remaining := o.pending[:0]
	for _, task := range o.pending {
		select {
		case <-task.done:
		default:
			remaining = append(remaining, task)
			continue
		}
		o.consume(task)
	}
	for i := len(remaining); i < len(o.pending); i++ {
		o.pending[i] = nil
	}
	o.pending = remaining
}

func (o *Orchestrator) consume(task *fetchTask) {
	entry := o.registry.lookup(task.key)
	if entry == nil {
		return
	}
	entry.fetching = false
	entry.LastStatus = task.status

	fields := logging.ObjectFields(o.registry.Name(), task.key, "completion_poll")
	fields["status"] = task.status

	if task.err != nil || task.result == "" {
		o.logger.WithError(task.err).WithFields(fields).Warn("fetch_failed")
		return
	}

	switch {
	case source.IsSuccess(task.status):
		// 新正文已提交，这是一次新的“变为可用”事件。
		o.announce(entry)
	case source.IsNotModified(task.status):
		if !entry.processed {
			o.announce(entry)
		} else {
			o.logger.WithFields(fields).Debug("revalidated")
		}
	default:
		o.logger.WithFields(fields).Warn("fetch_unsuccessful")
	}
}

// announce 置位一次性锁存并发出就绪通知。
func (o *Orchestrator) announce(entry *Entry) {
	entry.processed = true
	o.logger.WithFields(logging.ObjectFields(o.registry.Name(), entry.SourceKey, "notify")).
		Info("object_ready")
	o.notifier.ObjectReady(entry.SourceKey)
}

// Snapshot 返回所有对象状态的只读副本，按键排序，供诊断端使用。
func (o *Orchestrator) Snapshot() []EntryState {
	o.mu.Lock()
	defer o.mu.Unlock()

	states := make([]EntryState, 0, o.registry.Len())
	for _, key := range o.registry.keys() {
		states = append(states, o.registry.lookup(key).state())
	}
	return states
}

// PendingFetches 返回尚未被收割的在途任务数量。
func (o *Orchestrator) PendingFetches() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}
