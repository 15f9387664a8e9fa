package custody

import (
	"context"
	"errors"
	"sync"

	"github.com/filecoin-project/go-address"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"wallet-custody/internal/chain/types"
	"wallet-custody/internal/models"
	"wallet-custody/internal/repository"
)

var log = logging.Logger("custody")

var (
	ErrPrincipalNotAssigned = errors.New("principal has no assigned wallet")
	ErrKeyMaterialMissing   = errors.New("wallet key material missing")
	ErrKeyUnsealFailed      = errors.New("wallet key could not be unsealed")
	ErrKeyDestroyed         = errors.New("signing key already destroyed")
)

// KeyStore 读取加密密钥
type KeyStore interface {
	LoadKeyMaterial(ctx context.Context, principalID string) (*models.WalletRecord, error)
}

// KeyOpener decrypts sealed key material.
type KeyOpener interface {
	Open(ciphertext []byte) ([]byte, error)
}

type Custodian struct {
	store  KeyStore
	opener KeyOpener
}

func NewCustodian(store KeyStore, opener KeyOpener) *Custodian {
	return &Custodian{store: store, opener: opener}
}

// LoadSigningKey 解密 principalID 对应钱包的私钥
// 调用方必须调用 Destroy；优先使用 WithSigningKey
func (c *Custodian) LoadSigningKey(ctx context.Context, principalID string) (*KeyHandle, error) {
	rec, err := c.store.LoadKeyMaterial(ctx, principalID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, xerrors.Errorf("principal %q: %w", principalID, ErrPrincipalNotAssigned)
	}
	if err != nil {
		return nil, err
	}
	if len(rec.EncryptedKey) == 0 {
		log.Errorf("LoadSigningKey: wallet %d has no key material", rec.ID)
		return nil, xerrors.Errorf("wallet %s: %w", rec.WalletAddress, ErrKeyMaterialMissing)
	}

	kt, err := types.ParseKeyType(rec.KeyType)
	if err != nil {
		return nil, xerrors.Errorf("wallet %s: %w", rec.WalletAddress, ErrKeyUnsealFailed)
	}
	addr, err := address.NewFromString(rec.WalletAddress)
	if err != nil {
		return nil, xerrors.Errorf("wallet %d has unparsable address: %w", rec.ID, ErrKeyUnsealFailed)
	}

	plain, err := c.opener.Open(rec.EncryptedKey)
	if err != nil {
		// 不附带底层错误，避免密文细节进入日志
		log.Errorf("LoadSigningKey: unsealing key for %s failed", rec.WalletAddress)
		return nil, xerrors.Errorf("wallet %s: %w", rec.WalletAddress, ErrKeyUnsealFailed)
	}

	return &KeyHandle{
		Address: addr,
		ki:      &types.KeyInfo{Type: kt, PrivateKey: plain},
	}, nil
}

// WithSigningKey lends the key to fn and destroys it on every exit path,
// panics included.
func (c *Custodian) WithSigningKey(ctx context.Context, principalID string, fn func(h *KeyHandle) error) error {
	h, err := c.LoadSigningKey(ctx, principalID)
	if err != nil {
		return err
	}
	defer h.Destroy()
	return fn(h)
}

// KeyHandle 持有一次签名所需的明文私钥
type KeyHandle struct {
	Address address.Address

	mu sync.Mutex
	ki *types.KeyInfo
}

// Use runs fn with the plaintext key. fn must not retain it.
func (h *KeyHandle) Use(fn func(ki *types.KeyInfo) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ki == nil {
		return ErrKeyDestroyed
	}
	return fn(h.ki)
}

// Destroy zeroes the key. Safe to call more than once.
func (h *KeyHandle) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ki == nil {
		return
	}
	h.ki.Wipe()
	h.ki = nil
}
