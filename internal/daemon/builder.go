package daemon

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mirror-hub/mirror-hub/internal/config"
	"github.com/mirror-hub/mirror-hub/internal/mirror"
	"github.com/mirror-hub/mirror-hub/internal/source"
	"github.com/mirror-hub/mirror-hub/internal/store"
)

// BuildMirrors 根据配置逐个装配镜像调度器：每个镜像一个独立的存储命名空间、
// 一个指向上游的 Source，以及登记过的全部对象。所有镜像共享同一个 HTTP 客户端。
func BuildMirrors(cfg *config.Config, logger *logrus.Logger) ([]*mirror.Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	client := source.NewUpstreamClient(cfg.Global.UpstreamTimeout.DurationValue())

	orchestrators := make([]*mirror.Orchestrator, 0, len(cfg.Mirrors))
	for _, mc := range cfg.Mirrors {
		orch, err := buildMirror(cfg, mc, client, logger)
		if err != nil {
			return nil, fmt.Errorf("mirror %s: %w", mc.Name, err)
		}
		orchestrators = append(orchestrators, orch)
	}
	return orchestrators, nil
}

func buildMirror(cfg *config.Config, mc config.MirrorConfig, client *http.Client, logger *logrus.Logger) (*mirror.Orchestrator, error) {
	st, err := store.NewFileStore(cfg.Global.StoragePath, mc.Name)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	src, err := source.NewHTTPSource(client, mc.Upstream, cfg.EffectiveValidityWindow(mc))
	if err != nil {
		return nil, fmt.Errorf("init source: %w", err)
	}

	reg, err := mirror.NewRegistry(mc.Name, st, src)
	if err != nil {
		return nil, fmt.Errorf("init registry: %w", err)
	}
	for _, obj := range mc.Objects {
		if err := reg.Add(obj.Key, obj.DisplayName); err != nil {
			return nil, fmt.Errorf("register object %s: %w", obj.Key, err)
		}
	}

	notifier := mirror.NotifierFunc(func(key string) {
		logger.WithFields(logrus.Fields{
			"mirror": mc.Name,
			"object": key,
		}).Info("object_available")
	})
	return mirror.NewOrchestrator(reg, notifier, logger)
}
