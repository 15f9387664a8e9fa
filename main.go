package main

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	cli2 "wallet-custody/cli"
)

var log = logging.Logger("wallet-custody")

func main() {
	// 创建 CLI 应用实例
	app := &cli.App{
		Name:    "wallet-custody",
		Usage:   "托管钱包分配与交易签名服务",
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（默认依次查找 $CUSTODY_CONFIG、configs/config.toml、config.toml）",
			},
		},
		Before: cli2.Before,

		Commands: cli2.All(),
	}

	// 运行 CLI 应用
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
