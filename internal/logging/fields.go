package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// ArtifactFields 提供 action + 工件名字段，供下载/清理日志复用。
func ArtifactFields(action, artifact string) logrus.Fields {
	return logrus.Fields{
		"action":   action,
		"artifact": artifact,
	}
}
