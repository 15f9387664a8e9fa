package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"wallet-custody/internal/service"
)

// SignCmd 使用托管私钥签名未签名消息
var SignCmd = &cli.Command{
	Name:      "sign",
	Usage:     "使用 principal 托管的私钥签名消息",
	ArgsUsage: "[<路径> (可选，省略或为 - 时从标准输入读取)]",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "principal", Usage: "principal id", Required: true},
		&cli.StringFlag{Name: "msg", Usage: "Lotus JSON 或十六进制 CBOR 编码的未签名消息"},
	},
	Action: func(cctx *cli.Context) error {
		raw, err := readUnsigned(cctx)
		if err != nil {
			return err
		}

		svc, err := openService(cctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		resp, err := svc.Ex.SignTransaction(cctx.Context, &service.SignRequest{
			PrincipalID: cctx.String("principal"),
			Transaction: raw,
		})
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

// readUnsigned 读取未签名消息并转换为请求中的 transaction 字段
func readUnsigned(cctx *cli.Context) (json.RawMessage, error) {
	var data []byte
	switch {
	case cctx.String("msg") != "":
		data = []byte(cctx.String("msg"))
	case !cctx.Args().Present() || cctx.Args().First() == "-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		data = b
	default:
		b, err := os.ReadFile(cctx.Args().First())
		if err != nil {
			return nil, err
		}
		data = b
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, xerrors.New("no message given")
	}
	if data[0] == '{' {
		return data, nil
	}
	// 十六进制 CBOR 以 JSON 字符串传入
	quoted, err := json.Marshal(string(data))
	if err != nil {
		return nil, err
	}
	return quoted, nil
}
