package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Init 初始化全局日志
// level: debug/info/warn/error，无法解析时回退 info
// format: json 或 text
func Init(level, format string) {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stdout)

	if strings.EqualFold(format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// WithComponent 返回带组件字段的 Entry
func WithComponent(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}

// Discard 测试中静默日志
func Discard() {
	logrus.SetOutput(io.Discard)
}
