package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/crypto"
	block "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
)

// MessageVersion is the only message version the network accepts.
const MessageVersion = 0

var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrInvalidMessage = errors.New("invalid message")
)

type Message struct {
	Version uint64

	To   address.Address
	From address.Address

	Nonce uint64

	Value abi.TokenAmount

	GasLimit   int64
	GasFeeCap  abi.TokenAmount
	GasPremium abi.TokenAmount

	Method abi.MethodNum
	Params []byte
}

type SignedMessage struct {
	Message   Message
	Signature crypto.Signature
}

func (m *Message) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.MarshalCBOR(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Message) ToStorageBlock() (block.Block, error) {
	data, err := m.Serialize()
	if err != nil {
		return nil, err
	}

	c, err := abi.CidBuilder.Sum(data)
	if err != nil {
		return nil, err
	}

	return block.NewBlockWithCid(data, c)
}

// Cid of the unsigned message.
func (m *Message) Cid() (cid.Cid, error) {
	b, err := m.ToStorageBlock()
	if err != nil {
		return cid.Undef, err
	}
	return b.Cid(), nil
}

// ValidForSigning checks the fields the signer cannot work without. It never
// fills anything in: nonce, gas and method are the caller's business.
func (m *Message) ValidForSigning() error {
	if m.Version != MessageVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidMessage, m.Version)
	}
	if m.To == address.Undef {
		return fmt.Errorf("%w: 'To' address cannot be empty", ErrInvalidMessage)
	}
	if m.From == address.Undef {
		return fmt.Errorf("%w: 'From' address cannot be empty", ErrInvalidMessage)
	}
	for name, v := range map[string]abi.TokenAmount{
		"Value":      m.Value,
		"GasFeeCap":  m.GasFeeCap,
		"GasPremium": m.GasPremium,
	} {
		if v.Int == nil {
			return fmt.Errorf("%w: '%s' cannot be nil", ErrInvalidMessage, name)
		}
		if v.Sign() < 0 {
			return fmt.Errorf("%w: '%s' cannot be negative", ErrInvalidMessage, name)
		}
	}
	if m.GasLimit < 0 {
		return fmt.Errorf("%w: 'GasLimit' cannot be negative", ErrInvalidMessage)
	}
	return nil
}

func (sm *SignedMessage) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := sm.MarshalCBOR(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Cid of a BLS message is the unsigned message cid; BLS signatures are
// aggregated per block and not part of the on-chain message.
func (sm *SignedMessage) Cid() (cid.Cid, error) {
	if sm.Signature.Type == crypto.SigTypeBLS {
		return sm.Message.Cid()
	}

	data, err := sm.Serialize()
	if err != nil {
		return cid.Undef, err
	}
	return abi.CidBuilder.Sum(data)
}

// DecodeMessage accepts either a Lotus JSON message object or hex encoded
// CBOR (with or without 0x prefix). The input must hold exactly one message.
func DecodeMessage(raw []byte) (*Message, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrEmptyMessage
	}

	var msg Message
	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		if err := dec.Decode(&msg); err != nil {
			return nil, fmt.Errorf("decoding json message: %w", err)
		}
		if dec.More() {
			return nil, fmt.Errorf("%w: trailing data after json message", ErrInvalidMessage)
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			return nil, fmt.Errorf("%w: trailing data after json message", ErrInvalidMessage)
		}
		return &msg, nil
	}

	s := strings.TrimPrefix(strings.TrimPrefix(string(trimmed), "0x"), "0X")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding hex message: %w", err)
	}
	r := bytes.NewReader(data)
	if err := msg.UnmarshalCBOR(r); err != nil {
		return nil, fmt.Errorf("decoding cbor message: %w", err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after cbor message", ErrInvalidMessage, r.Len())
	}
	return &msg, nil
}

// DecodeSignedMessage parses the hex CBOR form stored in the ledger.
func DecodeSignedMessage(rawHex string) (*SignedMessage, error) {
	data, err := hex.DecodeString(strings.TrimSpace(rawHex))
	if err != nil {
		return nil, err
	}
	sm := new(SignedMessage)
	r := bytes.NewReader(data)
	if err := sm.UnmarshalCBOR(r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after signed message", ErrInvalidMessage, r.Len())
	}
	return sm, nil
}
