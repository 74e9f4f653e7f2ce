package store

import (
	"errors"
	"io"
	"time"
)

// Store 负责管理单个镜像命名空间的持久化副本。磁盘布局遵循：
//
//	<StoragePath>/<namespace>/<key>     # 已提交的正文
//	<StoragePath>/<namespace>/.<key>    # 暂存文件，Commit 前对读取方不可见
//
// 暂存路径由最终路径确定性推导（保留前缀），因此 Commit/DiscardTemp 无需额外状态。
type Store interface {
	// Exists 返回是否存在已提交（非暂存）的副本。不存在是正常的 false，不是错误。
	Exists(key string) bool

	// Stat 返回已提交副本的元信息。若不存在则返回 ErrNotFound。
	Stat(key string) (Info, error)

	// OpenWrite 打开写入流。temp 为 true 时写入暂存位置，否则直接写最终位置。
	OpenWrite(key string, temp bool) (io.WriteCloser, error)

	// OpenRead 打开已提交副本的读取流。若不存在则返回 ErrNotFound。
	OpenRead(key string) (io.ReadCloser, error)

	// Commit 以 rename 语义用暂存内容原子替换最终位置，读取方不会看到半写状态。
	Commit(key string) error

	// DiscardTemp 删除暂存文件且不影响最终位置；暂存文件不存在时静默成功。
	DiscardTemp(key string) error

	// TouchValidity 调整已提交副本的修改时间：extendBy 为零时重置为当前时刻，
	// 否则在原时间戳上前移 extendBy。用于 not-modified 场景下延长新鲜度而不重写正文。
	TouchValidity(key string, extendBy time.Duration) error

	// LocationHint 返回便于诊断的副本位置描述，仅用于日志/诊断输出。
	LocationHint(key string) string
}

// Info 描述一份已提交副本的元信息，ModTime 即新鲜度计算的基准。
type Info struct {
	Key       string
	Path      string
	SizeBytes int64
	ModTime   time.Time
}

// ErrNotFound 表示请求的已提交副本不存在。
var ErrNotFound = errors.New("store entry not found")
