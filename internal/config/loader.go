package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"
)

const (
	defaultConfigPath = "configs/config.toml" // 默认配置文件路径
	legacyConfigPath  = "config.toml"         // 旧版配置文件路径
	envConfigPath     = "CUSTODY_CONFIG"      // 通过环境变量指定配置文件
)

// Load 加载配置文件
// explicit 不为空时直接使用该路径，否则自动查找
func Load(explicit string) error {
	path := explicit
	if path == "" {
		path = ResolveConfigPath()
	}
	if path == "" {
		return nil
	}
	if _, err := toml.DecodeFile(path, &AppConfig); err != nil {
		return xerrors.Errorf("decoding config %s: %w", path, err)
	}
	return nil
}

// ResolveConfigPath 解析配置文件路径
// 按优先级查找：环境变量、默认路径、旧版路径
func ResolveConfigPath() string {
	if p := os.Getenv(envConfigPath); p != "" && fileExists(p) {
		return p
	}
	if fileExists(defaultConfigPath) {
		return defaultConfigPath
	}
	if fileExists(legacyConfigPath) {
		return legacyConfigPath
	}
	return ""
}

// fileExists 检查文件是否存在
// 返回 true 表示文件存在且不是目录
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
