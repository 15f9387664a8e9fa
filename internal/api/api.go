package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	logging "github.com/ipfs/go-log/v2"

	"wallet-custody/internal/ledger"
	"wallet-custody/internal/service"
)

var log = logging.Logger("api")

const defaultHistoryLimit = 50

// Service is the part of service.Executor exposed over HTTP.
type Service interface {
	GetOrAssignWallet(ctx context.Context, req *service.WalletRequest) (*service.WalletResponse, error)
	ProvisionWallets(ctx context.Context, n int) (*service.ProvisionResponse, error)
	SignTransaction(ctx context.Context, req *service.SignRequest) (*service.SignResponse, error)
	SignatureHistory(ctx context.Context, principalID string, limit int) (*service.SignatureHistory, error)
	VerifyLedger(ctx context.Context) (*service.VerifyResponse, error)
}

var _ Service = (*service.Executor)(nil)

type Handler struct {
	Svc Service
}

func (h *Handler) GetWalletAddress(c *gin.Context) {
	var req service.WalletRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": service.KindInvalidArgument})
		return
	}
	resp, err := h.Svc.GetOrAssignWallet(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ProvisionWallets(c *gin.Context) {
	var req service.ProvisionRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": service.KindInvalidArgument})
		return
	}
	resp, err := h.Svc.ProvisionWallets(c.Request.Context(), req.Count)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) SignTransaction(c *gin.Context) {
	var req service.SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": service.KindInvalidArgument})
		return
	}
	resp, err := h.Svc.SignTransaction(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetSignatures(c *gin.Context) {
	limit := defaultHistoryLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer", "kind": service.KindInvalidArgument})
			return
		}
		limit = n
	}
	resp, err := h.Svc.SignatureHistory(c.Request.Context(), c.Param("principal"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) VerifyLedger(c *gin.Context) {
	resp, err := h.Svc.VerifyLedger(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if !resp.Intact {
		status = http.StatusConflict
	}
	c.JSON(status, resp)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind service.Kind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindPoolExhausted:
		return http.StatusServiceUnavailable
	case service.KindAllocationConflict:
		return http.StatusConflict
	case service.KindInvalidArgument:
		return http.StatusBadRequest
	case service.KindMalformedTx:
		return http.StatusUnprocessableEntity
	case service.KindCanceled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	body := gin.H{"kind": kind}
	switch kind {
	case service.KindInternal, service.KindStorage, service.KindCustodyFailure:
		// 细节只进日志
		log.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		body["error"] = string(kind)
	default:
		body["error"] = err.Error()
	}

	var pw *ledger.PartialWriteError
	if errors.As(err, &pw) {
		body["ledger_id"] = pw.LedgerID
	}
	c.JSON(StatusFor(kind), body)
}
