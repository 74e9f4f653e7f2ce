package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mirror-hub/mirror-hub/internal/mirror"
)

// Runner 周期性驱动所有镜像调度器：按扫描间隔检查副本新鲜度并派发抓取，
// 按轮询间隔收割已完成的抓取任务。两个节拍互相独立。
type Runner struct {
	orchestrators []*mirror.Orchestrator
	scanInterval  time.Duration
	pollInterval  time.Duration
	logger        *logrus.Logger

	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewRunner 校验节拍参数并创建 Runner，Start 之前不产生任何 goroutine。
func NewRunner(orchestrators []*mirror.Orchestrator, scanInterval, pollInterval time.Duration, logger *logrus.Logger) (*Runner, error) {
	if len(orchestrators) == 0 {
		return nil, errors.New("at least one mirror required")
	}
	if scanInterval <= 0 {
		return nil, fmt.Errorf("invalid scan interval: %s", scanInterval)
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("invalid poll interval: %s", pollInterval)
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Runner{
		orchestrators: orchestrators,
		scanInterval:  scanInterval,
		pollInterval:  pollInterval,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}, nil
}

// Start 启动扫描与轮询两个循环。重复调用视为错误。
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("runner already running")
	}
	r.running = true

	r.logger.WithFields(logrus.Fields{
		"mirrors":       len(r.orchestrators),
		"scan_interval": r.scanInterval.String(),
		"poll_interval": r.pollInterval.String(),
	}).Info("daemon_started")

	// 启动时先做一轮扫描，缺失的副本不必等第一个节拍。
	r.scanAll()

	r.wg.Add(2)
	go r.scanLoop(ctx)
	go r.pollLoop(ctx)
	return nil
}

// Stop 通知循环退出并等待全部结束，可以安全地多次调用。
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopChan)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("daemon_stopped")
}

// IsRunning 报告循环是否仍在运行，供诊断接口使用。
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) scanLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.scanAll()
		}
	}
}

func (r *Runner) pollLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			for _, orch := range r.orchestrators {
				orch.CompletionPoll()
			}
		}
	}
}

func (r *Runner) scanAll() {
	for _, orch := range r.orchestrators {
		orch.ValidityScan()
	}
}
