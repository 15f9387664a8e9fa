package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"wallet-custody/internal/allocator"
	"wallet-custody/internal/chain/types"
	"wallet-custody/internal/config"
	crypto2 "wallet-custody/internal/crypto"
	"wallet-custody/internal/custody"
	"wallet-custody/internal/ledger"
	"wallet-custody/internal/models"
	"wallet-custody/internal/repository"
	"wallet-custody/internal/signer"
	"wallet-custody/internal/vapi"
	"wallet-custody/internal/wallet"
)

var log = logging.Logger("executor")

// ErrNoNode is returned by PushSignedTransaction when no Lotus node is configured.
var ErrNoNode = errors.New("no lotus node configured")

type Executor struct {
	store  *repository.Store
	alloc  *allocator.Allocator
	signer *signer.Signer
	ledger *ledger.Ledger
	node   *vapi.Node
	now    func() time.Time
}

// NewExecutor 组装分配、托管、签名与账本组件，node 可以为 nil
func NewExecutor(store *repository.Store, sealer *crypto2.Sealer, node *vapi.Node, cfg *config.Config) (*Executor, error) {
	kt, err := types.ParseKeyType(cfg.KeyType)
	if err != nil {
		return nil, err
	}

	fc := wallet.NewFilecoin()
	alloc := allocator.New(store, fc, sealer, allocator.Options{
		MaxRetries:  cfg.MaxRetries,
		KeyType:     kt,
		Concurrency: cfg.Concurrency,
		MaxBatch:    cfg.MaxBatch,
	})
	sgn := signer.New(custody.NewCustodian(store, sealer), fc)

	log.Info("NewExecutor: creating new executor instance")
	return &Executor{
		store:  store,
		alloc:  alloc,
		signer: sgn,
		ledger: ledger.New(store),
		node:   node,
		now:    time.Now,
	}, nil
}

// GetOrAssignWallet 返回 principal 的钱包地址，必要时从钱包池分配
func (e *Executor) GetOrAssignWallet(ctx context.Context, req *WalletRequest) (*WalletResponse, error) {
	addr, err := e.alloc.GetOrAssign(ctx, req.PrincipalID, req.Email, req.Mobile)
	if err != nil {
		log.Errorf("GetOrAssignWallet: principal %q: %v", req.PrincipalID, err)
		return nil, err
	}
	return &WalletResponse{WalletAddress: addr}, nil
}

// ProvisionWallets 向钱包池批量添加 n 个新钱包
func (e *Executor) ProvisionWallets(ctx context.Context, n int) (*ProvisionResponse, error) {
	count, err := e.alloc.Provision(ctx, n)
	if err != nil {
		log.Errorf("ProvisionWallets: n=%d: %v", n, err)
		return nil, err
	}
	return &ProvisionResponse{Status: StatusSuccess, Count: count}, nil
}

// SignTransaction signs with the principal's custodied key and records the
// result. Nothing reaches the ledger when signing fails.
func (e *Executor) SignTransaction(ctx context.Context, req *SignRequest) (*SignResponse, error) {
	if req.PrincipalID == "" {
		return nil, xerrors.Errorf("empty principal id: %w", allocator.ErrInvalidArgument)
	}
	raw, err := unsignedBytes(req.Transaction)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", signer.ErrMalformedTransaction, err)
	}

	payload, err := e.signer.Sign(ctx, req.PrincipalID, raw)
	if err != nil {
		return nil, err
	}

	id, err := e.ledger.Record(ctx, req.PrincipalID, payload, e.now())
	if err != nil {
		return nil, err
	}

	return &SignResponse{
		Status:               StatusSuccess,
		LedgerID:             id,
		WalletAddress:        payload.WalletAddress,
		MessageCid:           payload.MessageCid,
		RawSignedTransaction: payload.RawSignedTransaction,
	}, nil
}

// unsignedBytes accepts either a JSON object or a JSON string of hex CBOR.
func unsignedBytes(tx json.RawMessage) ([]byte, error) {
	if len(tx) == 0 || string(tx) == "null" {
		return nil, types.ErrEmptyMessage
	}
	if tx[0] == '"' {
		var s string
		if err := json.Unmarshal(tx, &s); err != nil {
			return nil, err
		}
		return []byte(s), nil
	}
	return tx, nil
}

// SignatureHistory 返回 principal 的签名计数与最近的签名记录
func (e *Executor) SignatureHistory(ctx context.Context, principalID string, limit int) (*SignatureHistory, error) {
	rec, err := e.store.FindByPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	entries, err := e.ledger.History(ctx, principalID, limit)
	if err != nil {
		return nil, err
	}

	out := &SignatureHistory{
		PrincipalID:    principalID,
		WalletAddress:  rec.WalletAddress,
		SignatureCount: rec.SignatureCount,
		LastSignedAt:   rec.LastSignedAt,
		Entries:        make([]SignatureEntry, 0, len(entries)),
	}
	for _, en := range entries {
		out.Entries = append(out.Entries, SignatureEntry{
			LedgerID:             en.LedgerID,
			MessageCid:           en.MessageCid,
			SigType:              en.SigType,
			RawSignedTransaction: en.RawSignedTransaction,
			CreatedAt:            en.CreatedAt,
		})
	}
	return out, nil
}

// VerifyLedger 校验签名账本的哈希链
func (e *Executor) VerifyLedger(ctx context.Context) (*VerifyResponse, error) {
	n, err := e.ledger.Verify(ctx)
	if errors.Is(err, ledger.ErrChainBroken) {
		return &VerifyResponse{Intact: false, Entries: n, Error: err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}
	return &VerifyResponse{Intact: true, Entries: n}, nil
}

func (e *Executor) PoolStats(ctx context.Context) (repository.PoolStats, error) {
	return e.store.Stats(ctx)
}

func (e *Executor) ListWallets(ctx context.Context, f repository.WalletFilter) ([]models.WalletRecord, error) {
	return e.store.ListWallets(ctx, f)
}

func (e *Executor) ListSignedTransactions(ctx context.Context, f repository.LedgerFilter) ([]models.SignedTransaction, error) {
	return e.store.ListSignedTransactions(ctx, f)
}

// PushResult 广播结果，Lookup 仅在等待确认时填充
type PushResult struct {
	MessageCid cid.Cid
	Lookup     *types.MsgLookup
}

// PushSignedTransaction 将账本中的已签名消息广播到 Lotus 节点
// 签名流程从不广播，只有运维显式调用时才会推送
func (e *Executor) PushSignedTransaction(ctx context.Context, ledgerID string, wait bool) (*PushResult, error) {
	if e.node == nil {
		return nil, ErrNoNode
	}

	entry, err := e.store.GetSignedTransaction(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	sm, err := types.DecodeSignedMessage(entry.RawSignedTransaction)
	if err != nil {
		log.Errorf("PushSignedTransaction: entry %s is not a signed message: %v", ledgerID, err)
		return nil, xerrors.Errorf("decoding ledger entry %s: %w", ledgerID, err)
	}

	log.Infof("PushSignedTransaction: pushing message to mempool")
	msgCid, err := e.node.MpoolPush(ctx, sm)
	if err != nil {
		log.Errorf("PushSignedTransaction: failed to push message: %v", err)
		return nil, err
	}
	res := &PushResult{MessageCid: msgCid}
	if !wait {
		return res, nil
	}

	log.Infof("PushSignedTransaction: waiting for message %s", msgCid)
	res.Lookup, err = e.node.StateWaitMsg(ctx, msgCid, vapi.DefaultConfidence)
	if err != nil {
		log.Errorf("PushSignedTransaction: message %s failed: %v", msgCid, err)
		return res, err
	}

	log.Infof("PushSignedTransaction: completed successfully, msgCid=%s", msgCid)
	return res, nil
}
