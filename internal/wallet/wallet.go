package wallet

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/filecoin-project/go-address"
	fcrypto "github.com/filecoin-project/go-crypto"
	"github.com/filecoin-project/go-state-types/crypto"
	logging "github.com/ipfs/go-log/v2"

	"wallet-custody/internal/chain/types"
)

var log = logging.Logger("wallet")

// Cryptography is everything the custody engine needs from a wallet
// implementation: fresh key pairs and raw message signing.
type Cryptography interface {
	GenerateKeypair(typ types.KeyType) (address.Address, *types.KeyInfo, error)
	SignMessage(msg *types.Message, ki *types.KeyInfo) (*types.SignedMessage, error)
}

// Filecoin implements Cryptography with pure Go secp256k1 and BLS keys.
type Filecoin struct{}

func NewFilecoin() *Filecoin {
	return &Filecoin{}
}

var _ Cryptography = (*Filecoin)(nil)

// GenerateKeypair 根据指定的密钥类型生成新密钥
func (f *Filecoin) GenerateKeypair(typ types.KeyType) (address.Address, *types.KeyInfo, error) {
	var privKey []byte
	var err error

	switch typ {
	case types.KTSecp256k1:
		privKey, err = fcrypto.GenerateKey()
		if err != nil {
			log.Errorf("GenerateKeypair: failed to generate secp256k1 key: %v", err)
			return address.Undef, nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
		}

	case types.KTBLS:
		seed := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, seed); err != nil {
			return address.Undef, nil, fmt.Errorf("failed to generate random seed: %w", err)
		}
		privKey, err = BLSGeneratePrivateKeyWithSeed(seed)
		wipe(seed)
		if err != nil {
			return address.Undef, nil, fmt.Errorf("failed to generate BLS key: %w", err)
		}

	default:
		return address.Undef, nil, fmt.Errorf("unsupported key type: %s", typ)
	}

	ki := &types.KeyInfo{Type: typ, PrivateKey: privKey}
	addr, err := AddressOf(ki)
	if err != nil {
		ki.Wipe()
		return address.Undef, nil, fmt.Errorf("failed to derive address: %w", err)
	}

	log.Debugf("GenerateKeypair: generated %s key, address: %s", typ, addr)
	return addr, ki, nil
}

// SignMessage signs the message CID, the same bytes Lotus signs.
func (f *Filecoin) SignMessage(msg *types.Message, ki *types.KeyInfo) (*types.SignedMessage, error) {
	sigType, err := sigTypeForKeyType(ki.Type)
	if err != nil {
		return nil, err
	}

	blk, err := msg.ToStorageBlock()
	if err != nil {
		return nil, fmt.Errorf("serializing message: %w", err)
	}

	sig, err := SignBytes(blk.Cid().Bytes(), ki.PrivateKey, sigType)
	if err != nil {
		return nil, fmt.Errorf("signing message: %w", err)
	}

	return &types.SignedMessage{
		Message:   *msg,
		Signature: crypto.Signature{Type: sigType, Data: sig},
	}, nil
}

// AddressOf derives the address a key signs for.
func AddressOf(ki *types.KeyInfo) (address.Address, error) {
	sigType, err := sigTypeForKeyType(ki.Type)
	if err != nil {
		return address.Undef, err
	}
	return PrivateKeyToAddress(ki.PrivateKey, sigType)
}
