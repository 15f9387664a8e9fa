package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter registers every route on a fresh engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/wallets/address", h.GetWalletAddress)
	r.POST("/wallets/provision", h.ProvisionWallets)
	r.GET("/wallets/:principal/signatures", h.GetSignatures)
	r.POST("/transactions/sign", h.SignTransaction)
	r.GET("/ledger/verify", h.VerifyLedger)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

// requestLogger 只记录路由模板，不记录查询参数（可能包含联系方式）
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infof("%s %s %d %s", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
