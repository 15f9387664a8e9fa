package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"wallet-custody/internal/api"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd 启动 HTTP 服务
var ServeCmd = &cli.Command{
	Name:  "serve",
	Usage: "启动 HTTP API 服务",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "listen", Usage: "监听地址，默认取配置文件 Server.Listen"},
		&cli.BoolFlag{Name: "debug", Usage: "gin 调试模式"},
	},
	Action: func(cctx *cli.Context) error {
		svc, err := openService(cctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		if !cctx.Bool("debug") {
			gin.SetMode(gin.ReleaseMode)
		}

		listen := cctx.String("listen")
		if listen == "" {
			listen = svc.Cfg.Listen
		}
		srv := &http.Server{
			Addr:              listen,
			Handler:           api.NewRouter(&api.Handler{Svc: svc.Ex}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Infof("serve: listening on %s", listen)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		log.Info("serve: shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	},
}
