package types

import (
	"encoding/json"
	"fmt"

	"github.com/filecoin-project/go-state-types/crypto"
)

// KeyType defines a type of key.
type KeyType string

const (
	KTSecp256k1 KeyType = "secp256k1"
	KTBLS       KeyType = "bls"
)

// ParseKeyType accepts the configured key type name.
func ParseKeyType(s string) (KeyType, error) {
	switch KeyType(s) {
	case KTSecp256k1, KTBLS:
		return KeyType(s), nil
	default:
		return "", fmt.Errorf("unsupported key type: %q", s)
	}
}

func (kt *KeyType) UnmarshalJSON(bb []byte) error {
	{
		var s string
		err := json.Unmarshal(bb, &s)
		if err == nil {
			*kt = KeyType(s)
			return nil
		}
	}

	{
		var b byte
		err := json.Unmarshal(bb, &b)
		if err != nil {
			return fmt.Errorf("could not unmarshal KeyType either as string nor integer: %w", err)
		}
		bst := crypto.SigType(b)

		switch bst {
		case crypto.SigTypeBLS:
			*kt = KTBLS
		case crypto.SigTypeSecp256k1:
			*kt = KTSecp256k1
		default:
			return fmt.Errorf("unsupported signature type: %d", b)
		}
	}

	return nil
}

// KeyInfo is the plaintext form of a wallet key. It only exists between
// unsealing and Wipe.
type KeyInfo struct {
	Type       KeyType
	PrivateKey []byte
}

// Wipe zeroes the private key in place.
func (ki *KeyInfo) Wipe() {
	if ki == nil {
		return
	}
	for i := range ki.PrivateKey {
		ki.PrivateKey[i] = 0
	}
	ki.PrivateKey = nil
}

// String keeps key bytes out of logs and error messages.
func (ki KeyInfo) String() string {
	return fmt.Sprintf("KeyInfo{Type: %s, PrivateKey: <redacted>}", ki.Type)
}

// GoString covers %#v.
func (ki KeyInfo) GoString() string {
	return ki.String()
}
