package models

import "time"

// WalletContact is one observed contact identifier of an assigned wallet.
// Rows are only ever inserted; insertion order is the contact order.
type WalletContact struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	WalletID  uint      `gorm:"not null;uniqueIndex:idx_wallet_contact,priority:1" json:"walletId"`
	Kind      string    `gorm:"size:16;not null;uniqueIndex:idx_wallet_contact,priority:2" json:"kind"`
	Value     string    `gorm:"size:320;not null;uniqueIndex:idx_wallet_contact,priority:3" json:"-"`
	Hash      string    `gorm:"size:64;not null;index" json:"hash"`
	CreatedAt time.Time `json:"createdAt"`
}

func (WalletContact) TableName() string { return "wallet_contacts" }
