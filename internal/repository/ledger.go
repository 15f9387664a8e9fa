package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"wallet-custody/internal/models"
)

const (
	maxChainRetries = 5
	walkBatchSize   = 500
)

// LedgerFilter 签名记录查询条件
type LedgerFilter struct {
	PrincipalID string
	Limit       int
}

// AppendSignedTransaction 追加一条签名记录并接到哈希链尾部
// prev_hash 唯一，两个并发追加争抢同一链尾时后者重试
func (s *Store) AppendSignedTransaction(ctx context.Context, rec *models.SignedTransaction) error {
	var err error
	for attempt := 0; attempt < maxChainRetries; attempt++ {
		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			prev := models.GenesisHash

			var head models.SignedTransaction
			herr := tx.Select("seq", "entry_hash").Last(&head).Error
			switch {
			case herr == nil:
				prev = head.EntryHash
			case errors.Is(herr, gorm.ErrRecordNotFound):
			default:
				return herr
			}

			rec.Seq = 0
			rec.PrevHash = prev
			rec.EntryHash = rec.ComputeHash()
			return tx.Create(rec).Error
		})
		if err == nil {
			log.Debugf("AppendSignedTransaction: appended %s at seq %d", rec.LedgerID, rec.Seq)
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		log.Warnf("AppendSignedTransaction: chain head moved, retrying (attempt %d)", attempt+1)
	}

	log.Errorf("AppendSignedTransaction: failed to append %s: %v", rec.LedgerID, err)
	return wrapStorage("AppendSignedTransaction", err)
}

// GetSignedTransaction 按账本 ID 读取签名记录
func (s *Store) GetSignedTransaction(ctx context.Context, ledgerID string) (*models.SignedTransaction, error) {
	var rec models.SignedTransaction
	err := s.DB.WithContext(ctx).Where("ledger_id = ?", ledgerID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("ledger entry %q", ledgerID)
	}
	if err != nil {
		return nil, wrapStorage("GetSignedTransaction", err)
	}
	return &rec, nil
}

// ListSignedTransactions 按时间倒序列出签名记录
func (s *Store) ListSignedTransactions(ctx context.Context, f LedgerFilter) ([]models.SignedTransaction, error) {
	q := s.DB.WithContext(ctx).Order("seq DESC")
	if f.PrincipalID != "" {
		q = q.Where("principal_id = ?", f.PrincipalID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []models.SignedTransaction
	if err := q.Find(&out).Error; err != nil {
		return nil, wrapStorage("ListSignedTransactions", err)
	}
	return out, nil
}

// WalkSignedTransactions 按链顺序分批遍历全部签名记录
func (s *Store) WalkSignedTransactions(ctx context.Context, fn func(*models.SignedTransaction) error) error {
	var batch []models.SignedTransaction
	var fnErr error
	res := s.DB.WithContext(ctx).FindInBatches(&batch, walkBatchSize, func(tx *gorm.DB, n int) error {
		for i := range batch {
			if fnErr = fn(&batch[i]); fnErr != nil {
				return fnErr
			}
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	return wrapStorage("WalkSignedTransactions", res.Error)
}
