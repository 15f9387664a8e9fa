package service

import (
	"wallet-custody/internal/config"
	crypto2 "wallet-custody/internal/crypto"
	"wallet-custody/internal/repository"
	"wallet-custody/internal/rpc"
	"wallet-custody/internal/vapi"
)

type NewService struct {
	Ex    *Executor
	Cfg   *config.Config
	store *repository.Store
}

func NewClient() (*NewService, error) {
	// 加载配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewClientWithConfig(cfg)
}

func NewClientWithConfig(cfg *config.Config) (*NewService, error) {
	// 派生密钥加密密钥
	sealer, err := crypto2.NewSealer(cfg.Seed)
	if err != nil {
		return nil, err
	}
	// 打开数据库连接
	store, err := repository.OpenStore(cfg.DBDSN, repository.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		CandidateWindow: cfg.CandidateWindow,
	})
	if err != nil {
		return nil, err
	}

	var node *vapi.Node
	if cfg.LotusHost != "" {
		node = vapi.NewNode(rpc.NewLotusApi(cfg.LotusHost, cfg.LotusToken))
	}

	// 创建执行器
	executor, err := NewExecutor(store, sealer, node, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &NewService{Ex: executor, Cfg: cfg, store: store}, nil
}

func (s *NewService) Close() error {
	return s.store.Close()
}
