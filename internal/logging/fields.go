package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// ObjectFields 提供 mirror/object 字段，供刷新流程与诊断日志复用。
func ObjectFields(mirrorName, key, action string) logrus.Fields {
	return logrus.Fields{
		"mirror": mirrorName,
		"object": key,
		"action": action,
	}
}

// FetchFields 在 ObjectFields 基础上补充条件拉取标记。
func FetchFields(mirrorName, key string, conditional bool) logrus.Fields {
	fields := ObjectFields(mirrorName, key, "fetch")
	fields["conditional"] = conditional
	return fields
}

// RequestFields 提供 HTTP 服务端的请求日志字段。
func RequestFields(mirrorName, key, requestID string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"mirror":     mirrorName,
		"object":     key,
		"request_id": requestID,
		"cache_hit":  cacheHit,
	}
}
