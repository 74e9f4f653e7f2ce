package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，所有镜像共享同一份参数。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxAge       int      `mapstructure:"LogMaxAge"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StoragePath     string   `mapstructure:"StoragePath"`
	ScanInterval    Duration `mapstructure:"ScanInterval"`
	PollInterval    Duration `mapstructure:"PollInterval"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// MirrorConfig 决定单个镜像如何与上游交互以及登记哪些对象。
type MirrorConfig struct {
	Name           string         `mapstructure:"Name"`
	Upstream       string         `mapstructure:"Upstream"`
	ValidityWindow Duration       `mapstructure:"ValidityWindow"`
	Objects        []ObjectConfig `mapstructure:"Object"`
}

// ObjectConfig 登记一个远端对象。Key 同时充当远端路径与本地文件名。
type ObjectConfig struct {
	Key         string `mapstructure:"Key"`
	DisplayName string `mapstructure:"DisplayName"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global  GlobalConfig   `mapstructure:",squash"`
	Mirrors []MirrorConfig `mapstructure:"Mirror"`
}

// ObjectCount 返回所有镜像登记的对象总数，供启动日志使用。
func ObjectCount(mirrors []MirrorConfig) int {
	total := 0
	for _, m := range mirrors {
		total += len(m.Objects)
	}
	return total
}

// EffectiveValidityWindow 返回特定镜像生效的新鲜度窗口，未覆盖时回退至默认值。
func (c *Config) EffectiveValidityWindow(m MirrorConfig) time.Duration {
	if m.ValidityWindow.DurationValue() > 0 {
		return m.ValidityWindow.DurationValue()
	}
	return defaultValidityWindow
}
