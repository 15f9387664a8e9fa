package allocator

import (
	"context"
	"errors"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"wallet-custody/internal/chain/types"
	crypto2 "wallet-custody/internal/crypto"
	"wallet-custody/internal/models"
	"wallet-custody/internal/repository"
	"wallet-custody/internal/wallet"
)

var log = logging.Logger("allocator")

var (
	ErrPoolExhausted   = errors.New("wallet pool exhausted")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrProvisioning    = errors.New("wallet provisioning failed")
)

const (
	DefaultMaxRetries  = 3
	DefaultConcurrency = 8
	DefaultMaxBatch    = 10000
)

// PoolStore 分配器依赖的钱包池存储
type PoolStore interface {
	FindByPrincipal(ctx context.Context, principalID string) (*models.WalletRecord, error)
	FindOneUnassigned(ctx context.Context) (*models.WalletRecord, error)
	Assign(ctx context.Context, recordID uint, principalID string, contacts []repository.Contact) error
	AppendContacts(ctx context.Context, recordID uint, contacts []repository.Contact) error
	BulkInsert(ctx context.Context, records []*models.WalletRecord) error
}

// KeySealer encrypts key material before it is persisted.
type KeySealer interface {
	Seal(plaintext []byte) ([]byte, error)
}

type Options struct {
	MaxRetries  int
	KeyType     types.KeyType
	Concurrency int
	MaxBatch    int
}

type Allocator struct {
	store  PoolStore
	crypto wallet.Cryptography
	sealer KeySealer
	opts   Options
}

func New(store PoolStore, cry wallet.Cryptography, sealer KeySealer, opts Options) *Allocator {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.KeyType == "" {
		opts.KeyType = types.KTSecp256k1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = DefaultMaxBatch
	}
	return &Allocator{store: store, crypto: cry, sealer: sealer, opts: opts}
}

// GetOrAssign 返回 principalID 绑定的钱包地址，未绑定时从钱包池中分配一个
// email / mobile 为空表示未提供
func (a *Allocator) GetOrAssign(ctx context.Context, principalID, email, mobile string) (string, error) {
	if principalID == "" {
		return "", xerrors.Errorf("empty principal id: %w", ErrInvalidArgument)
	}
	supplied := contactsFor(email, mobile)

	for attempt := 1; attempt <= a.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		rec, err := a.store.FindByPrincipal(ctx, principalID)
		if err == nil {
			if err := a.appendMissing(ctx, rec, supplied); err != nil {
				return "", err
			}
			return rec.WalletAddress, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}

		free, err := a.store.FindOneUnassigned(ctx)
		if errors.Is(err, repository.ErrNotFound) {
			log.Warnf("GetOrAssign: no unassigned wallet left for principal %q", principalID)
			return "", ErrPoolExhausted
		}
		if err != nil {
			return "", err
		}

		err = a.store.Assign(ctx, free.ID, principalID, supplied)
		if err == nil {
			log.Infof("GetOrAssign: principal %q bound to %s", principalID, free.WalletAddress)
			return free.WalletAddress, nil
		}
		if !errors.Is(err, repository.ErrAllocationConflict) {
			return "", err
		}
		log.Debugf("GetOrAssign: attempt %d for principal %q lost the race on wallet %d", attempt, principalID, free.ID)
	}

	return "", xerrors.Errorf("principal %q after %d attempts: %w", principalID, a.opts.MaxRetries, repository.ErrAllocationConflict)
}

// appendMissing 只写入记录中尚不存在的原始联系方式，没有新值时不产生写入
func (a *Allocator) appendMissing(ctx context.Context, rec *models.WalletRecord, supplied []repository.Contact) error {
	var missing []repository.Contact
	for _, c := range supplied {
		if !rec.HasContact(c.Kind, c.Value) {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	for _, c := range missing {
		log.Debugf("appendMissing: wallet %d gains %s contact %s", rec.ID, c.Kind, c.Hash)
	}
	return a.store.AppendContacts(ctx, rec.ID, missing)
}

func contactsFor(email, mobile string) []repository.Contact {
	var out []repository.Contact
	if email != "" {
		out = append(out, repository.Contact{Kind: models.ContactEmail, Value: email, Hash: crypto2.HashIdentifier(email)})
	}
	if mobile != "" {
		out = append(out, repository.Contact{Kind: models.ContactMobile, Value: mobile, Hash: crypto2.HashIdentifier(mobile)})
	}
	return out
}

// Provision 生成 n 个新钱包并一次性写入钱包池
// 任意一个密钥生成、加密或写入失败时整体失败
func (a *Allocator) Provision(ctx context.Context, n int) (int, error) {
	if n < 1 || n > a.opts.MaxBatch {
		return 0, xerrors.Errorf("provision count %d outside [1, %d]: %w", n, a.opts.MaxBatch, ErrInvalidArgument)
	}

	records := make([]*models.WalletRecord, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := a.newRecord()
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Errorf("Provision: generating %d wallets failed: %v", n, err)
		return 0, fmt.Errorf("%w: %w", ErrProvisioning, err)
	}

	if err := a.store.BulkInsert(ctx, records); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProvisioning, err)
	}

	log.Infof("Provision: added %d %s wallets to the pool", n, a.opts.KeyType)
	return n, nil
}

func (a *Allocator) newRecord() (*models.WalletRecord, error) {
	addr, ki, err := a.crypto.GenerateKeypair(a.opts.KeyType)
	if err != nil {
		return nil, xerrors.Errorf("generating keypair: %w", err)
	}
	sealed, err := a.sealer.Seal(ki.PrivateKey)
	ki.Wipe()
	if err != nil {
		return nil, xerrors.Errorf("sealing key for %s: %w", addr, err)
	}
	return &models.WalletRecord{
		WalletAddress: addr.String(),
		KeyType:       string(a.opts.KeyType),
		EncryptedKey:  sealed,
	}, nil
}

var _ KeySealer = (*crypto2.Sealer)(nil)
