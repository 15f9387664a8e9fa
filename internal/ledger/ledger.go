package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"wallet-custody/internal/models"
	"wallet-custody/internal/repository"
	"wallet-custody/internal/signer"
)

var log = logging.Logger("ledger")

var (
	ErrLedger             = errors.New("ledger write failed")
	ErrPartialLedgerWrite = errors.New("signature recorded but wallet counter not updated")
	ErrChainBroken        = errors.New("ledger hash chain broken")
)

// Store 账本依赖的持久化操作
type Store interface {
	AppendSignedTransaction(ctx context.Context, rec *models.SignedTransaction) error
	IncrementSignature(ctx context.Context, principalID string, at time.Time) error
	ListSignedTransactions(ctx context.Context, f repository.LedgerFilter) ([]models.SignedTransaction, error)
	WalkSignedTransactions(ctx context.Context, fn func(*models.SignedTransaction) error) error
}

// PartialWriteError 签名记录已写入，但计数更新失败
type PartialWriteError struct {
	LedgerID string
	Err      error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("ledger entry %s: %s: %v", e.LedgerID, ErrPartialLedgerWrite, e.Err)
}

func (e *PartialWriteError) Is(target error) bool { return target == ErrPartialLedgerWrite }

func (e *PartialWriteError) Unwrap() error { return e.Err }

type Ledger struct {
	store Store
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Record 追加签名记录并更新钱包签名计数
func (l *Ledger) Record(ctx context.Context, principalID string, payload *signer.SignedPayload, at time.Time) (string, error) {
	rec := &models.SignedTransaction{
		LedgerID:             uuid.New().String(),
		PrincipalID:          principalID,
		WalletAddress:        payload.WalletAddress,
		MessageCid:           payload.MessageCid,
		SigType:              payload.SigType,
		RawSignedTransaction: payload.RawSignedTransaction,
		// sqlite keeps microseconds reliably; the hash must survive a round trip
		CreatedAt: at.UTC().Truncate(time.Microsecond),
	}

	if err := l.store.AppendSignedTransaction(ctx, rec); err != nil {
		return "", fmt.Errorf("%w: %w", ErrLedger, err)
	}

	if err := l.store.IncrementSignature(ctx, principalID, at); err != nil {
		log.Errorf("Record: entry %s stored but counter update for principal %q failed: %v", rec.LedgerID, principalID, err)
		return rec.LedgerID, &PartialWriteError{LedgerID: rec.LedgerID, Err: err}
	}

	log.Infof("Record: principal %q entry %s (message %s)", principalID, rec.LedgerID, rec.MessageCid)
	return rec.LedgerID, nil
}

// Verify walks the chain from genesis and returns the number of intact entries.
func (l *Ledger) Verify(ctx context.Context) (int, error) {
	n := 0
	prev := models.GenesisHash
	err := l.store.WalkSignedTransactions(ctx, func(rec *models.SignedTransaction) error {
		if rec.PrevHash != prev {
			return xerrors.Errorf("entry %d (%s) links to %s, expected %s: %w", rec.Seq, rec.LedgerID, rec.PrevHash, prev, ErrChainBroken)
		}
		if got := rec.ComputeHash(); got != rec.EntryHash {
			return xerrors.Errorf("entry %d (%s) content hash mismatch: %w", rec.Seq, rec.LedgerID, ErrChainBroken)
		}
		prev = rec.EntryHash
		n++
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrChainBroken) {
			log.Errorf("Verify: %v", err)
		}
		return n, err
	}
	return n, nil
}

// History 按时间倒序返回 principalID 的签名记录
func (l *Ledger) History(ctx context.Context, principalID string, limit int) ([]models.SignedTransaction, error) {
	return l.store.ListSignedTransactions(ctx, repository.LedgerFilter{PrincipalID: principalID, Limit: limit})
}
