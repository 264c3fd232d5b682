package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// FallbackFields 标记日志输出降级事件及其受影响的文件路径。
func FallbackFields(logPath string) logrus.Fields {
	return logrus.Fields{
		"action": "logger_fallback",
		"path":   logPath,
	}
}

// AggregateFields 提供聚合请求的公共字段，供读路径日志复用。
func AggregateFields(key, kind, provenance string) logrus.Fields {
	return logrus.Fields{
		"key":        key,
		"kind":       kind,
		"provenance": provenance,
	}
}
