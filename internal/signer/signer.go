package signer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"wallet-custody/internal/chain/types"
	"wallet-custody/internal/custody"
	"wallet-custody/internal/wallet"
)

var log = logging.Logger("signer")

var (
	ErrMalformedTransaction = errors.New("malformed transaction")
	ErrCustodyFailure       = errors.New("custody failure")
	ErrSigningFailed        = errors.New("signing failed")
)

// KeyCustodian lends a principal's signing key for the duration of fn.
type KeyCustodian interface {
	WithSigningKey(ctx context.Context, principalID string, fn func(h *custody.KeyHandle) error) error
}

// SignedPayload 签名结果
type SignedPayload struct {
	WalletAddress        string `json:"wallet_address"`
	MessageCid           string `json:"message_cid"`
	SigType              string `json:"sig_type"`
	RawSignedTransaction string `json:"raw_signed_transaction"`
}

type Signer struct {
	custodian KeyCustodian
	crypto    wallet.Cryptography
}

func New(custodian KeyCustodian, cry wallet.Cryptography) *Signer {
	return &Signer{custodian: custodian, crypto: cry}
}

// Sign 使用 principalID 托管的私钥对未签名消息签名
// 消息中的 nonce 与 gas 字段原样保留
func (s *Signer) Sign(ctx context.Context, principalID string, unsignedTx []byte) (*SignedPayload, error) {
	msg, err := types.DecodeMessage(unsignedTx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTransaction, err)
	}
	if err := msg.ValidForSigning(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTransaction, err)
	}

	var (
		payload *SignedPayload
		loaded  bool
	)
	err = s.custodian.WithSigningKey(ctx, principalID, func(h *custody.KeyHandle) error {
		loaded = true
		if msg.From != h.Address {
			return xerrors.Errorf("message sender %s is not the custodied wallet %s: %w", msg.From, h.Address, ErrMalformedTransaction)
		}
		return h.Use(func(ki *types.KeyInfo) error {
			sm, err := s.crypto.SignMessage(msg, ki)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrSigningFailed, err)
			}
			payload, err = encode(sm, h, ki.Type)
			return err
		})
	})
	if err != nil {
		if !loaded {
			log.Warnf("Sign: no signing key for principal %q: %v", principalID, err)
			return nil, fmt.Errorf("%w: %w", ErrCustodyFailure, err)
		}
		if errors.Is(err, custody.ErrKeyDestroyed) {
			return nil, fmt.Errorf("%w: %w", ErrCustodyFailure, err)
		}
		log.Errorf("Sign: principal %q: %v", principalID, err)
		return nil, err
	}

	log.Infof("Sign: principal %q signed message %s", principalID, payload.MessageCid)
	return payload, nil
}

func encode(sm *types.SignedMessage, h *custody.KeyHandle, kt types.KeyType) (*SignedPayload, error) {
	raw, err := sm.Serialize()
	if err != nil {
		return nil, fmt.Errorf("%w: serializing signed message: %w", ErrSigningFailed, err)
	}
	c, err := sm.Cid()
	if err != nil {
		return nil, fmt.Errorf("%w: computing message cid: %w", ErrSigningFailed, err)
	}
	return &SignedPayload{
		WalletAddress:        h.Address.String(),
		MessageCid:           c.String(),
		SigType:              string(kt),
		RawSignedTransaction: hex.EncodeToString(raw),
	}, nil
}
