package cli

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	appcfg "wallet-custody/internal/config"
	"wallet-custody/internal/service"
	"wallet-custody/lib/signlog"
)

var log = logging.Logger("cli")

type ctxKey string

const (
	CtxConfig ctxKey = "config"
)

// All 返回所有可用的 CLI 命令列表
func All() []*cli.Command {
	return []*cli.Command{
		PoolCmd,   // 钱包池管理
		SignCmd,   // 签名交易
		LedgerCmd, // 签名账本
		ServeCmd,  // HTTP 服务
	}
}

// Before 加载配置并注入到 Context
func Before(c *cli.Context) error {
	if err := appcfg.Load(c.String("config")); err != nil {
		return err
	}
	cfg, err := appcfg.LoadConfig()
	if err != nil {
		return err
	}
	signlog.SetupLogLevels(cfg.LogLevel)

	c.Context = context.WithValue(c.Context, CtxConfig, cfg)
	return nil
}

// openService 按注入的配置打开存储并组装执行器，调用方负责 Close
func openService(cctx *cli.Context) (*service.NewService, error) {
	cfg, ok := cctx.Context.Value(CtxConfig).(*appcfg.Config)
	if !ok {
		return nil, xerrors.New("configuration not loaded")
	}
	if cfg.Seed == "" {
		return nil, xerrors.New("Security.Seed must be set in the config file")
	}
	return service.NewClientWithConfig(cfg)
}
