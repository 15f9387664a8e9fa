package config

import (
	"os"
	"path/filepath"
)

// AppConfig 全局配置实例（从 TOML 文件加载）
var AppConfig struct {
	Security  *Security  // 安全配置
	Database  *Database  // 数据库配置
	Allocator *Allocator // 钱包分配配置
	Provision *Provision // 钱包批量生成配置
	Server    *Server    // HTTP 服务配置
	Lotus     *Lotus     // Lotus 节点配置
	Log       *Log       // 日志配置
}

// Security 安全相关配置
type Security struct {
	Seed string // 私钥加密种子
}

// Database 数据库配置
type Database struct {
	Path         string // SQLite 数据库路径
	MaxOpenConns int    // 最大连接数，SQLite 建议为 1
}

// Allocator 钱包分配参数
type Allocator struct {
	MaxRetries      int // 并发冲突时的最大重试次数
	CandidateWindow int // 随机挑选未分配钱包的候选窗口大小
}

// Provision 钱包批量生成参数
type Provision struct {
	KeyType     string // 密钥类型：secp256k1 或 bls
	Concurrency int    // 并行生成密钥的协程数
	MaxBatch    int    // 单次最多生成的钱包数量
}

// Server HTTP 服务配置
type Server struct {
	Listen string // 监听地址
}

// Lotus 节点连接配置
type Lotus struct {
	Host  string // Lotus 节点地址
	Token string // API 访问令牌
}

// Log 日志配置
type Log struct {
	Level string
}

const (
	DefaultMaxOpenConns     = 1
	DefaultMaxRetries       = 3
	DefaultCandidateWindow  = 16
	DefaultKeyType          = "secp256k1"
	DefaultConcurrency      = 8
	DefaultMaxProvisionSize = 10000
	DefaultListen           = ":8080"
	DefaultLotusHost        = "https://api.node.glif.io/rpc/v1"
	DefaultLogLevel         = "INFO"
)

// Config 应用程序运行时配置
type Config struct {
	DBDSN           string // SQLite 数据库路径
	MaxOpenConns    int
	Seed            string
	MaxRetries      int
	CandidateWindow int
	KeyType         string
	Concurrency     int
	MaxBatch        int
	Listen          string
	LotusHost       string
	LotusToken      string
	LogLevel        string
}

// LoadConfig 加载配置
// 优先使用配置文件，否则使用默认值
func LoadConfig() (*Config, error) {
	cfg := &Config{
		MaxOpenConns:    DefaultMaxOpenConns,
		MaxRetries:      DefaultMaxRetries,
		CandidateWindow: DefaultCandidateWindow,
		KeyType:         DefaultKeyType,
		Concurrency:     DefaultConcurrency,
		MaxBatch:        DefaultMaxProvisionSize,
		Listen:          DefaultListen,
		LotusHost:       DefaultLotusHost,
		LogLevel:        DefaultLogLevel,
	}

	// 获取数据库路径
	if AppConfig.Database != nil && AppConfig.Database.Path != "" {
		cfg.DBDSN = expandPath(AppConfig.Database.Path)
	} else {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			cfg.DBDSN = filepath.Join(homeDir, ".wallet-custody", "custody.db")
		}
	}
	if AppConfig.Database != nil && AppConfig.Database.MaxOpenConns > 0 {
		cfg.MaxOpenConns = AppConfig.Database.MaxOpenConns
	}

	if AppConfig.Security != nil {
		cfg.Seed = AppConfig.Security.Seed
	}

	if a := AppConfig.Allocator; a != nil {
		if a.MaxRetries > 0 {
			cfg.MaxRetries = a.MaxRetries
		}
		if a.CandidateWindow > 0 {
			cfg.CandidateWindow = a.CandidateWindow
		}
	}

	if p := AppConfig.Provision; p != nil {
		if p.KeyType != "" {
			cfg.KeyType = p.KeyType
		}
		if p.Concurrency > 0 {
			cfg.Concurrency = p.Concurrency
		}
		if p.MaxBatch > 0 {
			cfg.MaxBatch = p.MaxBatch
		}
	}

	if AppConfig.Server != nil && AppConfig.Server.Listen != "" {
		cfg.Listen = AppConfig.Server.Listen
	}

	if l := AppConfig.Lotus; l != nil {
		if l.Host != "" {
			cfg.LotusHost = l.Host
		}
		cfg.LotusToken = l.Token
	}

	if AppConfig.Log != nil && AppConfig.Log.Level != "" {
		cfg.LogLevel = AppConfig.Log.Level
	}

	return cfg, nil
}

// expandPath 展开路径中的 ~ 为用户主目录
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, path[1:])
		}
	}
	return path
}
