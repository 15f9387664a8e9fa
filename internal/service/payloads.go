package service

import (
	"encoding/json"
	"time"
)

type WalletRequest struct {
	PrincipalID string `json:"principal_id" form:"principal_id"`
	Email       string `json:"email,omitempty" form:"email"`
	Mobile      string `json:"mobile,omitempty" form:"mobile"`
}

type WalletResponse struct {
	WalletAddress string `json:"wallet_address"`
}

type ProvisionRequest struct {
	Count int `json:"count" form:"n"`
}

type ProvisionResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// SignRequest carries an unsigned message either as a Lotus JSON object or
// as a JSON string holding hex CBOR.
type SignRequest struct {
	PrincipalID string          `json:"principal_id"`
	Transaction json.RawMessage `json:"transaction"`
}

type SignResponse struct {
	Status               string `json:"status"`
	LedgerID             string `json:"ledger_id"`
	WalletAddress        string `json:"wallet_address"`
	MessageCid           string `json:"message_cid"`
	RawSignedTransaction string `json:"raw_signed_transaction"`
}

type SignatureEntry struct {
	LedgerID             string    `json:"ledger_id"`
	MessageCid           string    `json:"message_cid"`
	SigType              string    `json:"sig_type"`
	RawSignedTransaction string    `json:"raw_signed_transaction"`
	CreatedAt            time.Time `json:"created_at"`
}

type SignatureHistory struct {
	PrincipalID    string           `json:"principal_id"`
	WalletAddress  string           `json:"wallet_address"`
	SignatureCount uint64           `json:"signature_count"`
	LastSignedAt   *time.Time       `json:"last_signed_at,omitempty"`
	Entries        []SignatureEntry `json:"entries"`
}

type VerifyResponse struct {
	Intact  bool   `json:"intact"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

const StatusSuccess = "success"
