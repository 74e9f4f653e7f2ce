package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.ScanInterval.DurationValue() <= 0 {
		return newFieldError("Global.ScanInterval", "必须大于 0")
	}
	if g.PollInterval.DurationValue() <= 0 {
		return newFieldError("Global.PollInterval", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}

	if len(c.Mirrors) == 0 {
		return errors.New("至少需要配置一个 Mirror")
	}

	seenNames := map[string]struct{}{}
	for i := range c.Mirrors {
		m := &c.Mirrors[i]
		if m.Name == "" {
			return newFieldError("Mirror[].Name", "不能为空")
		}
		if strings.ContainsAny(m.Name, "/\\ ") {
			return newFieldError(mirrorField(m.Name, "Name"), "不允许包含路径分隔符或空格")
		}
		// HTTP 路由按小写匹配镜像名，去重同样忽略大小写。
		lowered := strings.ToLower(m.Name)
		if _, exists := seenNames[lowered]; exists {
			return newFieldError(mirrorField(m.Name, "Name"), "重复")
		}
		seenNames[lowered] = struct{}{}

		if err := validateUpstream(m.Upstream); err != nil {
			return fmt.Errorf("%s: %w", mirrorField(m.Name, "Upstream"), err)
		}
		// 未配置时回退到默认窗口，负值才视为错误。
		if m.ValidityWindow.DurationValue() < 0 {
			return newFieldError(mirrorField(m.Name, "ValidityWindow"), "不能为负数")
		}

		if len(m.Objects) == 0 {
			return newFieldError(mirrorField(m.Name, "Object"), "至少需要登记一个对象")
		}
		seenKeys := map[string]struct{}{}
		for _, obj := range m.Objects {
			if obj.Key == "" {
				return newFieldError(mirrorField(m.Name, "Object[].Key"), "不能为空")
			}
			if _, exists := seenKeys[obj.Key]; exists {
				return newFieldError(mirrorField(m.Name, "Object["+obj.Key+"].Key"), "重复")
			}
			seenKeys[obj.Key] = struct{}{}
		}
	}

	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
