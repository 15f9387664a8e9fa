package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"wallet-custody/internal/repository"
	"wallet-custody/internal/service"
	"wallet-custody/internal/ui/tablewriter"
)

// PoolCmd 钱包池管理命令
var PoolCmd = &cli.Command{
	Name:  "pool",
	Usage: "钱包池管理",
	Subcommands: []*cli.Command{
		poolProvision,
		poolAssign,
		poolList,
	},
}

var poolProvision = &cli.Command{
	Name:      "provision",
	Usage:     "生成新钱包并加入钱包池",
	ArgsUsage: "<数量>",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "n",
			Aliases: []string{"count"},
			Usage:   "生成的钱包数量",
		},
	},
	Action: func(cctx *cli.Context) error {
		n := cctx.Int("n")
		if n == 0 && cctx.Args().Present() {
			if _, err := fmt.Sscanf(cctx.Args().First(), "%d", &n); err != nil {
				return xerrors.Errorf("invalid count %q", cctx.Args().First())
			}
		}

		svc, err := openService(cctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		resp, err := svc.Ex.ProvisionWallets(cctx.Context, n)
		if err != nil {
			return err
		}
		fmt.Printf("provisioned %d wallets\n", resp.Count)
		return nil
	},
}

var poolAssign = &cli.Command{
	Name:  "assign",
	Usage: "获取或分配 principal 的钱包地址",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "principal", Usage: "principal id", Required: true},
		&cli.StringFlag{Name: "email", Usage: "联系邮箱"},
		&cli.StringFlag{Name: "mobile", Usage: "联系电话"},
	},
	Action: func(cctx *cli.Context) error {
		svc, err := openService(cctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		resp, err := svc.Ex.GetOrAssignWallet(cctx.Context, &service.WalletRequest{
			PrincipalID: cctx.String("principal"),
			Email:       cctx.String("email"),
			Mobile:      cctx.String("mobile"),
		})
		if err != nil {
			return err
		}
		fmt.Println(resp.WalletAddress)
		return nil
	},
}

var poolList = &cli.Command{
	Name:  "list",
	Usage: "列出钱包池中的钱包",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "assigned", Usage: "只显示已分配钱包"},
		&cli.BoolFlag{Name: "unassigned", Usage: "只显示未分配钱包"},
		&cli.IntFlag{Name: "limit", Usage: "最多显示条数", Value: 100},
		&cli.IntFlag{Name: "offset", Usage: "跳过前 N 条"},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.Bool("assigned") && cctx.Bool("unassigned") {
			return xerrors.New("--assigned and --unassigned are mutually exclusive")
		}
		f := repository.WalletFilter{Limit: cctx.Int("limit"), Offset: cctx.Int("offset")}
		switch {
		case cctx.Bool("assigned"):
			v := true
			f.Assigned = &v
		case cctx.Bool("unassigned"):
			v := false
			f.Assigned = &v
		}

		svc, err := openService(cctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		stats, err := svc.Ex.PoolStats(cctx.Context)
		if err != nil {
			return err
		}
		wallets, err := svc.Ex.ListWallets(cctx.Context, f)
		if err != nil {
			return err
		}

		tw := tablewriter.New(
			tablewriter.Col("ID", tablewriter.RightAlign()),
			tablewriter.Col("Address"),
			tablewriter.Col("Type"),
			tablewriter.Col("State", tablewriter.Highlight(stateColor)),
			tablewriter.Col("Principal"),
			tablewriter.Col("Signatures", tablewriter.RightAlign()),
			tablewriter.Col("LastSigned"))

		for _, w := range wallets {
			state := "free"
			if w.Assigned() {
				state = "assigned"
			}
			row := map[string]interface{}{
				"ID":         w.ID,
				"Address":    w.WalletAddress,
				"Type":       w.KeyType,
				"State":      state,
				"Principal":  w.Principal(),
				"Signatures": w.SignatureCount,
			}
			if w.LastSignedAt != nil {
				row["LastSigned"] = w.LastSignedAt.Local().Format(time.DateTime)
			}
			tw.Write(row)
		}

		if err := tw.Flush(os.Stdout); err != nil {
			return err
		}
		fmt.Printf("\ntotal %d, assigned %d, unassigned %s\n", stats.Total, stats.Assigned, unassignedString(stats))
		return nil
	},
}

func stateColor(v string) *color.Color {
	if v == "assigned" {
		return color.New(color.FgGreen)
	}
	return color.New(color.FgYellow)
}

func unassignedString(st repository.PoolStats) string {
	s := fmt.Sprint(st.Unassigned)
	if st.Unassigned == 0 {
		return color.RedString(s)
	}
	return s
}
