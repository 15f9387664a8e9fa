package signlog

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
)

// SetupLogLevels 初始化日志等级
// 设置了 GOLOG_LOG_LEVEL 时以环境变量为准
func SetupLogLevels(level string) {
	if _, set := os.LookupEnv("GOLOG_LOG_LEVEL"); set {
		return
	}
	if level == "" {
		level = "INFO"
	}
	if err := logging.SetLogLevel("*", level); err != nil {
		_ = logging.SetLogLevel("*", "INFO")
	}
}
