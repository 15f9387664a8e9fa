package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"wallet-custody/internal/repository"
	"wallet-custody/internal/ui/tablewriter"
)

// LedgerCmd 签名账本命令
var LedgerCmd = &cli.Command{
	Name:  "ledger",
	Usage: "签名账本",
	Subcommands: []*cli.Command{
		ledgerList,
		ledgerVerify,
		ledgerPush,
	},
}

var ledgerList = &cli.Command{
	Name:  "list",
	Usage: "列出签名记录（最新在前）",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "principal", Usage: "只显示该 principal 的记录"},
		&cli.IntFlag{Name: "limit", Usage: "最多显示条数", Value: 50},
		&cli.BoolFlag{Name: "raw", Usage: "同时输出已签名消息"},
	},
	Action: func(cctx *cli.Context) error {
		svc, err := openService(cctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		entries, err := svc.Ex.ListSignedTransactions(cctx.Context, repository.LedgerFilter{
			PrincipalID: cctx.String("principal"),
			Limit:       cctx.Int("limit"),
		})
		if err != nil {
			return err
		}

		cols := []tablewriter.Column{
			tablewriter.Col("Seq", tablewriter.RightAlign()),
			tablewriter.Col("LedgerID"),
			tablewriter.Col("Principal"),
			tablewriter.Col("Address"),
			tablewriter.Col("MessageCid"),
			tablewriter.Col("Created"),
		}
		if cctx.Bool("raw") {
			cols = append(cols, tablewriter.NewLineCol("Raw"))
		}
		tw := tablewriter.New(cols...)
		for _, e := range entries {
			tw.Write(map[string]interface{}{
				"Seq":        e.Seq,
				"LedgerID":   e.LedgerID,
				"Principal":  e.PrincipalID,
				"Address":    e.WalletAddress,
				"MessageCid": e.MessageCid,
				"Created":    e.CreatedAt.Local().Format(time.DateTime),
				"Raw":        e.RawSignedTransaction,
			})
		}
		return tw.Flush(os.Stdout)
	},
}

var ledgerVerify = &cli.Command{
	Name:  "verify",
	Usage: "校验签名账本哈希链",
	Action: func(cctx *cli.Context) error {
		svc, err := openService(cctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.Ex.VerifyLedger(cctx.Context)
		if err != nil {
			return err
		}
		if !res.Intact {
			fmt.Println(color.RedString("ledger broken after %d intact entries: %s", res.Entries, res.Error))
			return cli.Exit("", 1)
		}
		fmt.Println(color.GreenString("ledger intact: %d entries", res.Entries))
		return nil
	},
}

// ledgerPush 将账本中的已签名消息推送到 Filecoin 内存池
var ledgerPush = &cli.Command{
	Name:      "push",
	Usage:     "广播账本中的已签名消息",
	ArgsUsage: "<ledger id>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "wait",
			Usage: "等待消息上链确认",
		},
	},
	Action: func(cctx *cli.Context) error {
		if !cctx.Args().Present() {
			return xerrors.New("must specify a ledger id")
		}

		svc, err := openService(cctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.Ex.PushSignedTransaction(cctx.Context, cctx.Args().First(), cctx.Bool("wait"))
		if err != nil {
			return xerrors.Errorf("failed to push message to mempool: %w", err)
		}

		fmt.Println("new message cid: ", res.MessageCid)
		if res.Lookup != nil {
			fmt.Printf("included at height %d, exit code %d\n", res.Lookup.Height, res.Lookup.Receipt.ExitCode)
		}
		return nil
	},
}
