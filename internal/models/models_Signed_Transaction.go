package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

type SignedTransaction struct {
	Seq                  uint64    `gorm:"primaryKey;autoIncrement" json:"seq"`
	LedgerID             string    `gorm:"size:36;uniqueIndex;not null" json:"ledgerId"`
	PrincipalID          string    `gorm:"size:256;index;not null" json:"principalId"`
	WalletAddress        string    `gorm:"size:128;index;not null" json:"walletAddress"`
	MessageCid           string    `gorm:"size:128" json:"messageCid"`
	SigType              string    `gorm:"size:16" json:"sigType"`
	RawSignedTransaction string    `gorm:"type:text;not null" json:"rawSignedTransaction"`
	CreatedAt            time.Time `gorm:"not null" json:"createdAt"`
	PrevHash             string    `gorm:"size:64;uniqueIndex;not null" json:"prevHash"`
	EntryHash            string    `gorm:"size:64;uniqueIndex;not null" json:"entryHash"`
}

func (SignedTransaction) TableName() string { return "signed_transactions" }

// GenesisHash is the PrevHash of the first ledger entry.
const GenesisHash = "genesis"

// ComputeHash covers every immutable field plus PrevHash, chaining each
// entry to the one before it.
func (t *SignedTransaction) ComputeHash() string {
	payload := struct {
		LedgerID             string `json:"ledger_id"`
		PrincipalID          string `json:"principal_id"`
		WalletAddress        string `json:"wallet_address"`
		MessageCid           string `json:"message_cid"`
		SigType              string `json:"sig_type"`
		RawSignedTransaction string `json:"raw_signed_transaction"`
		CreatedAt            int64  `json:"created_at"`
		PrevHash             string `json:"prev_hash"`
	}{
		LedgerID:             t.LedgerID,
		PrincipalID:          t.PrincipalID,
		WalletAddress:        t.WalletAddress,
		MessageCid:           t.MessageCid,
		SigType:              t.SigType,
		RawSignedTransaction: t.RawSignedTransaction,
		CreatedAt:            t.CreatedAt.UTC().UnixNano(),
		PrevHash:             t.PrevHash,
	}
	// a struct of strings and an int64 always marshals
	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
