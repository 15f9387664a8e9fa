package wallet

import (
	"bytes"
	"fmt"

	"github.com/filecoin-project/go-address"
	fcrypto "github.com/filecoin-project/go-crypto"
	"github.com/filecoin-project/go-state-types/crypto"
	"golang.org/x/crypto/blake2b"

	"wallet-custody/internal/chain/types"
)

// sigTypeForKeyType maps a stored key type to its signature type.
func sigTypeForKeyType(kt types.KeyType) (crypto.SigType, error) {
	switch kt {
	case types.KTSecp256k1:
		return crypto.SigTypeSecp256k1, nil
	case types.KTBLS:
		return crypto.SigTypeBLS, nil
	default:
		return crypto.SigTypeUnknown, fmt.Errorf("unsupported key type: %s", kt)
	}
}

// SignBytes signs data with a private key using the specified signature type.
func SignBytes(data []byte, privKey []byte, sigType crypto.SigType) ([]byte, error) {
	switch sigType {
	case crypto.SigTypeSecp256k1:
		digest := blake2b.Sum256(data)
		sig, err := fcrypto.Sign(privKey, digest[:])
		if err != nil {
			log.Errorf("SignBytes: secp256k1 signing failed: %v", err)
			return nil, err
		}
		return sig, nil

	case crypto.SigTypeBLS:
		return BLSSign(privKey, data)

	default:
		return nil, fmt.Errorf("unsupported signature type: %d", sigType)
	}
}

// VerifySecp256k1 recovers the signer of data and compares it to addr.
func VerifySecp256k1(sig []byte, addr address.Address, data []byte) error {
	digest := blake2b.Sum256(data)
	pub, err := fcrypto.EcRecover(digest[:], sig)
	if err != nil {
		return fmt.Errorf("recovering public key: %w", err)
	}
	recovered, err := address.NewSecp256k1Address(pub)
	if err != nil {
		return err
	}
	if !bytes.Equal(recovered.Bytes(), addr.Bytes()) {
		return fmt.Errorf("signature was made by %s, not %s", recovered, addr)
	}
	return nil
}

// PrivateKeyToAddress derives a Filecoin address from a private key.
func PrivateKeyToAddress(privKey []byte, sigType crypto.SigType) (address.Address, error) {
	switch sigType {
	case crypto.SigTypeSecp256k1:
		pubKey, err := secpPublicKey(privKey)
		if err != nil {
			return address.Undef, err
		}
		return address.NewSecp256k1Address(pubKey)

	case crypto.SigTypeBLS:
		pubKey, err := BLSPrivateKeyToPublicKey(privKey)
		if err != nil {
			return address.Undef, err
		}
		return address.NewBLSAddress(pubKey)

	default:
		return address.Undef, fmt.Errorf("unsupported signature type: %d", sigType)
	}
}

func secpPublicKey(privKey []byte) (pubKey []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("secpPublicKey: panic during public key generation")
			err = fmt.Errorf("invalid secp256k1 private key")
		}
	}()
	pubKey = fcrypto.PublicKey(privKey)
	if len(pubKey) == 0 {
		return nil, fmt.Errorf("invalid secp256k1 private key")
	}
	return pubKey, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
