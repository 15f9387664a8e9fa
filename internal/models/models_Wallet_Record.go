package models

import (
	"time"
)

// Contact kinds stored in wallet_contacts.
const (
	ContactEmail  = "email"
	ContactMobile = "mobile"
)

type WalletRecord struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	WalletAddress  string          `gorm:"size:128;uniqueIndex;not null" json:"walletAddress"`
	KeyType        string          `gorm:"size:32;not null" json:"keyType"`
	EncryptedKey   []byte          `gorm:"type:blob" json:"-"`
	PrincipalID    *string         `gorm:"size:256;uniqueIndex" json:"principalId"`
	SignatureCount uint64          `gorm:"not null;default:0" json:"signatureCount"`
	LastSignedAt   *time.Time      `json:"lastSignedAt"`
	Contacts       []WalletContact `gorm:"foreignKey:WalletID;constraint:OnDelete:RESTRICT" json:"-"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func (WalletRecord) TableName() string { return "wallet_records" }

func (w *WalletRecord) Assigned() bool {
	return w.PrincipalID != nil
}

func (w *WalletRecord) Principal() string {
	if w.PrincipalID == nil {
		return ""
	}
	return *w.PrincipalID
}

func (w *WalletRecord) ContactEmails() []string       { return w.contactValues(ContactEmail) }
func (w *WalletRecord) ContactEmailHashes() []string  { return w.contactHashes(ContactEmail) }
func (w *WalletRecord) ContactMobiles() []string      { return w.contactValues(ContactMobile) }
func (w *WalletRecord) ContactMobileHashes() []string { return w.contactHashes(ContactMobile) }

// HasContact compares raw values, never hashes.
func (w *WalletRecord) HasContact(kind, value string) bool {
	for _, c := range w.Contacts {
		if c.Kind == kind && c.Value == value {
			return true
		}
	}
	return false
}

func (w *WalletRecord) contactValues(kind string) []string {
	out := []string{}
	for _, c := range w.Contacts {
		if c.Kind == kind {
			out = append(out, c.Value)
		}
	}
	return out
}

func (w *WalletRecord) contactHashes(kind string) []string {
	out := []string{}
	for _, c := range w.Contacts {
		if c.Kind == kind {
			out = append(out, c.Hash)
		}
	}
	return out
}
