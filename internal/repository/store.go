package repository

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wallet-custody/internal/models"
)

var log = logging.Logger("repository")

const (
	defaultCandidateWindow = 16
	busyTimeoutMillis      = 5000
)

// Store 数据存储结构
// 封装了 GORM 数据库连接，实现钱包池与签名账本的持久化
type Store struct {
	DB     *gorm.DB // GORM 数据库实例
	window int      // 随机挑选未分配钱包的候选窗口
}

// Options 打开数据库时的可选参数
type Options struct {
	MaxOpenConns    int
	CandidateWindow int
}

// OpenStore 打开数据库存储
// 使用 SQLite 数据库，自动创建数据库文件并迁移表结构
// 参数：
//   - dbPath: SQLite 数据库文件路径
//   - opts: 连接数与分配窗口
//
// 返回：Store 实例或错误
func OpenStore(dbPath string, opts Options) (*Store, error) {
	log.Debug("OpenStore: opening SQLite database connection")

	// 如果路径为空，使用默认路径
	if dbPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Errorf("OpenStore: failed to get home directory: %v", err)
			return nil, err
		}
		dbPath = filepath.Join(homeDir, ".wallet-custody", "custody.db")
	}

	// 确保目录存在
	if !strings.HasPrefix(dbPath, ":memory:") && !strings.HasPrefix(dbPath, "file:") {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0700); err != nil {
			log.Errorf("OpenStore: failed to create directory %s: %v", dir, err)
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn(dbPath)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		log.Errorf("OpenStore: failed to open database: %v", err)
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}

	// 自动迁移所有数据表
	if err = db.AutoMigrate(
		&models.WalletRecord{},
		&models.WalletContact{},
		&models.SignedTransaction{},
	); err != nil {
		log.Errorf("OpenStore: auto migration failed: %v", err)
		return nil, err
	}

	window := opts.CandidateWindow
	if window <= 0 {
		window = defaultCandidateWindow
	}

	log.Debugf("OpenStore: SQLite database opened successfully at %s", dbPath)
	return &Store{DB: db, window: window}, nil
}

// Close 关闭底层连接
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// dsn 为 mattn/go-sqlite3 追加忙等待、立即写锁和外键参数
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=" + strconv.Itoa(busyTimeoutMillis) + "&_txlock=immediate&_foreign_keys=on"
}
