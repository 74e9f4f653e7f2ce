package source

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Source 描述一个远端对象来源。实现负责把传输层异常折叠为状态码，
// 调用方永远以状态码的方式统一消费结果。
type Source interface {
	// ValidityWindow 返回该来源对所有对象声明的新鲜度窗口。
	ValidityWindow() time.Duration

	// Fetch 拉取对象正文并写入 sink。lastKnownGood 非零时发起条件请求，
	// 远端可以用 not-modified 应答；仅在远端返回新内容时写 sink。
	// 返回 HTTP 风格状态码；传输层失败返回 StatusTransportError。
	Fetch(ctx context.Context, key string, sink io.Writer, lastKnownGood time.Time) int
}

// StatusTransportError 是本地传输/协议异常的保留状态码，
// 与远端返回的任何真实状态码区分开。
const StatusTransportError = 599

// IsSuccess reports whether the status carries new content (2xx class).
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// IsNotModified reports whether the remote declared the cached copy unchanged.
func IsNotModified(status int) bool {
	return status == http.StatusNotModified
}
