package repository

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wallet-custody/internal/models"
)

const insertBatchSize = 200

// Contact 待写入的联系方式（原值与哈希成对出现）
type Contact struct {
	Kind  string
	Value string
	Hash  string
}

// PoolStats 钱包池统计
type PoolStats struct {
	Total      int64 `json:"total"`
	Assigned   int64 `json:"assigned"`
	Unassigned int64 `json:"unassigned"`
}

// WalletFilter 钱包列表过滤条件
type WalletFilter struct {
	Assigned *bool
	Limit    int
	Offset   int
}

func orderContacts(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

// FindByPrincipal 查找已分配给 principalID 的钱包（不含密钥）
func (s *Store) FindByPrincipal(ctx context.Context, principalID string) (*models.WalletRecord, error) {
	var rec models.WalletRecord
	err := s.DB.WithContext(ctx).
		Omit("encrypted_key").
		Preload("Contacts", orderContacts).
		Where("principal_id = ?", principalID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("principal %q", principalID)
	}
	if err != nil {
		log.Errorf("FindByPrincipal: query failed: %v", err)
		return nil, wrapStorage("FindByPrincipal", err)
	}
	return &rec, nil
}

// LoadKeyMaterial 读取 principalID 对应钱包的加密密钥，仅供密钥托管模块使用
func (s *Store) LoadKeyMaterial(ctx context.Context, principalID string) (*models.WalletRecord, error) {
	var rec models.WalletRecord
	err := s.DB.WithContext(ctx).
		Select("id", "wallet_address", "key_type", "encrypted_key", "principal_id").
		Where("principal_id = ?", principalID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("principal %q", principalID)
	}
	if err != nil {
		log.Errorf("LoadKeyMaterial: query failed: %v", err)
		return nil, wrapStorage("LoadKeyMaterial", err)
	}
	return &rec, nil
}

// FindOneUnassigned 随机返回最早的若干个未分配钱包之一
// 并发分配时降低多个请求争抢同一条记录的概率
func (s *Store) FindOneUnassigned(ctx context.Context) (*models.WalletRecord, error) {
	var ids []uint
	err := s.DB.WithContext(ctx).
		Model(&models.WalletRecord{}).
		Where("principal_id IS NULL").
		Order("id").
		Limit(s.window).
		Pluck("id", &ids).Error
	if err != nil {
		log.Errorf("FindOneUnassigned: query failed: %v", err)
		return nil, wrapStorage("FindOneUnassigned", err)
	}
	if len(ids) == 0 {
		return nil, notFound("unassigned wallet")
	}

	id := ids[rand.IntN(len(ids))]

	var rec models.WalletRecord
	err = s.DB.WithContext(ctx).Omit("encrypted_key").First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("wallet %d", id)
	}
	if err != nil {
		return nil, wrapStorage("FindOneUnassigned", err)
	}
	return &rec, nil
}

// Assign 以乐观并发方式把钱包分配给 principalID
// 仅当 principal_id 仍为 NULL 时更新；联系方式在同一事务中写入
func (s *Store) Assign(ctx context.Context, recordID uint, principalID string, contacts []Contact) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.WalletRecord{}).
			Where("id = ? AND principal_id IS NULL", recordID).
			Update("principal_id", principalID)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				// principal 已在另一条记录上分配成功
				return conflict("principal %q already bound", principalID)
			}
			return wrapStorage("Assign", res.Error)
		}

		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.WalletRecord{}).Where("id = ?", recordID).Count(&n).Error; err != nil {
				return wrapStorage("Assign", err)
			}
			if n == 0 {
				return notFound("wallet %d", recordID)
			}
			return conflict("wallet %d already assigned", recordID)
		}

		return insertContacts(tx, recordID, contacts)
	})
	if err != nil {
		log.Debugf("Assign: wallet %d for principal %q not assigned: %v", recordID, principalID, err)
		return err
	}

	log.Infof("Assign: wallet %d assigned to principal %q", recordID, principalID)
	return nil
}

// AppendContacts 为已分配钱包追加联系方式，已存在的原值直接忽略
func (s *Store) AppendContacts(ctx context.Context, recordID uint, contacts []Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		err := tx.Model(&models.WalletRecord{}).
			Where("id = ? AND principal_id IS NOT NULL", recordID).
			Count(&n).Error
		if err != nil {
			return wrapStorage("AppendContacts", err)
		}
		if n == 0 {
			return notFound("assigned wallet %d", recordID)
		}
		return insertContacts(tx, recordID, contacts)
	})
}

func insertContacts(tx *gorm.DB, recordID uint, contacts []Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	rows := make([]models.WalletContact, 0, len(contacts))
	for _, c := range contacts {
		rows = append(rows, models.WalletContact{
			WalletID: recordID,
			Kind:     c.Kind,
			Value:    c.Value,
			Hash:     c.Hash,
		})
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	return wrapStorage("insertContacts", err)
}

// BulkInsert 在一个事务中写入新生成的钱包，失败时全部回滚
func (s *Store) BulkInsert(ctx context.Context, records []*models.WalletRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r.PrincipalID != nil || r.SignatureCount != 0 || len(r.Contacts) != 0 || len(r.EncryptedKey) == 0 {
			return ErrInvalidRecord
		}
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(records, insertBatchSize).Error
	})
	if err != nil {
		log.Errorf("BulkInsert: failed to insert %d wallets: %v", len(records), err)
		return wrapStorage("BulkInsert", err)
	}

	log.Infof("BulkInsert: inserted %d wallets", len(records))
	return nil
}

// IncrementSignature 原子地将签名计数加一并记录签名时间
func (s *Store) IncrementSignature(ctx context.Context, principalID string, at time.Time) error {
	res := s.DB.WithContext(ctx).
		Model(&models.WalletRecord{}).
		Where("principal_id = ?", principalID).
		Updates(map[string]interface{}{
			"signature_count": gorm.Expr("signature_count + ?", 1),
			"last_signed_at":  at,
		})
	if res.Error != nil {
		log.Errorf("IncrementSignature: update failed for principal %q: %v", principalID, res.Error)
		return wrapStorage("IncrementSignature", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("principal %q", principalID)
	}
	return nil
}

// ListWallets 列出钱包（不含密钥与联系方式）
func (s *Store) ListWallets(ctx context.Context, f WalletFilter) ([]models.WalletRecord, error) {
	q := s.DB.WithContext(ctx).Omit("encrypted_key").Order("id")
	if f.Assigned != nil {
		if *f.Assigned {
			q = q.Where("principal_id IS NOT NULL")
		} else {
			q = q.Where("principal_id IS NULL")
		}
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []models.WalletRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, wrapStorage("ListWallets", err)
	}
	return out, nil
}

// Stats 统计钱包池中已分配与未分配数量
func (s *Store) Stats(ctx context.Context) (PoolStats, error) {
	var st PoolStats
	db := s.DB.WithContext(ctx).Model(&models.WalletRecord{})
	if err := db.Count(&st.Total).Error; err != nil {
		return st, wrapStorage("Stats", err)
	}
	err := s.DB.WithContext(ctx).Model(&models.WalletRecord{}).
		Where("principal_id IS NOT NULL").
		Count(&st.Assigned).Error
	if err != nil {
		return st, wrapStorage("Stats", err)
	}
	st.Unassigned = st.Total - st.Assigned
	return st, nil
}
