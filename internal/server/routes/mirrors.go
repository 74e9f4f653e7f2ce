package routes

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/mirror-hub/mirror-hub/internal/mirror"
	"github.com/mirror-hub/mirror-hub/internal/server"
	"github.com/mirror-hub/mirror-hub/internal/store"
)

// RegisterMirrorRoutes 暴露 /-/mirrors 诊断接口，供 SRE 查询镜像与对象刷新状态。
func RegisterMirrorRoutes(app *fiber.App, mirrors *server.MirrorSet) {
	if app == nil || mirrors == nil {
		return
	}

	app.Get("/-/mirrors", func(c fiber.Ctx) error {
		payload := fiber.Map{
			"mirrors": encodeMirrors(mirrors.List()),
		}
		return c.JSON(payload)
	})

	app.Get("/-/mirrors/:name", func(c fiber.Ctx) error {
		name := strings.TrimSpace(c.Params("name"))
		if name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "mirror_name_required"})
		}
		orch, ok := mirrors.Lookup(name)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "mirror_not_found"})
		}
		return c.JSON(encodeMirror(orch))
	})
}

type mirrorPayload struct {
	Name                  string          `json:"name"`
	ValidityWindowSeconds int64           `json:"validity_window_seconds"`
	ObjectCount           int             `json:"object_count"`
	PendingFetches        int             `json:"pending_fetches"`
	Objects               []objectPayload `json:"objects"`
}

type objectPayload struct {
	mirror.EntryState
	SizeBytes int64  `json:"size_bytes,omitempty"`
	ModTime   string `json:"mod_time,omitempty"`
	Location  string `json:"location,omitempty"`
}

func encodeMirrors(orchestrators []*mirror.Orchestrator) []mirrorPayload {
	if len(orchestrators) == 0 {
		return nil
	}
	result := make([]mirrorPayload, 0, len(orchestrators))
	for _, orch := range orchestrators {
		result = append(result, encodeMirror(orch))
	}
	return result
}

func encodeMirror(orch *mirror.Orchestrator) mirrorPayload {
	reg := orch.Registry()
	states := orch.Snapshot()

	objects := make([]objectPayload, 0, len(states))
	for _, state := range states {
		item := objectPayload{EntryState: state}
		// 磁盘信息尽力而为：副本缺失不是诊断接口的错误。
		if info, err := reg.Store().Stat(state.SourceKey); err == nil {
			item.SizeBytes = info.SizeBytes
			item.ModTime = info.ModTime.UTC().Format(time.RFC3339)
			item.Location = reg.Store().LocationHint(state.SourceKey)
		} else if !errors.Is(err, store.ErrNotFound) {
			item.Location = reg.Store().LocationHint(state.SourceKey)
		}
		objects = append(objects, item)
	}

	return mirrorPayload{
		Name:                  reg.Name(),
		ValidityWindowSeconds: int64(reg.Source().ValidityWindow() / time.Second),
		ObjectCount:           reg.Len(),
		PendingFetches:        orch.PendingFetches(),
		Objects:               objects,
	}
}
