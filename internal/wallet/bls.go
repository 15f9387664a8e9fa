package wallet

import (
	"crypto/sha256"
	"fmt"
	"io"

	bls12381 "github.com/kilic/bls12-381"
	"golang.org/x/crypto/hkdf"
)

const (
	// BLSPrivateKeyBytes BLS12-381 私钥字节长度
	BLSPrivateKeyBytes = 32
	// BLSSignatureBytes BLS12-381 签名字节长度
	BLSSignatureBytes = 96

	// BLSDST Filecoin 中 BLS 签名的域分离标签
	BLSDST = "BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_"
)

// blsScalar 将 Filecoin 小端序私钥转换为标量，调用方负责清理返回的中间字节
func blsScalar(privKey []byte) (*bls12381.Fr, error) {
	if len(privKey) != BLSPrivateKeyBytes {
		return nil, fmt.Errorf("invalid BLS private key length: expected %d, got %d", BLSPrivateKeyBytes, len(privKey))
	}

	reversed := make([]byte, BLSPrivateKeyBytes)
	for i := 0; i < BLSPrivateKeyBytes; i++ {
		reversed[i] = privKey[BLSPrivateKeyBytes-1-i]
	}
	defer wipe(reversed)

	scalar := new(bls12381.Fr)
	scalar.FromBytes(reversed)
	return scalar, nil
}

// BLSPrivateKeyToPublicKey 从私钥派生 BLS 公钥（G1 压缩格式）
func BLSPrivateKeyToPublicKey(privKey []byte) ([]byte, error) {
	scalar, err := blsScalar(privKey)
	if err != nil {
		log.Errorf("BLSPrivateKeyToPublicKey: %v", err)
		return nil, err
	}

	g1 := bls12381.NewG1()
	pub := g1.New()
	g1.MulScalar(pub, g1.One(), scalar)
	return g1.ToCompressed(pub), nil
}

// BLSSign 使用 BLS 私钥签名消息：signature = privKey * H(message)
func BLSSign(privKey []byte, message []byte) ([]byte, error) {
	scalar, err := blsScalar(privKey)
	if err != nil {
		log.Errorf("BLSSign: %v", err)
		return nil, err
	}

	g2 := bls12381.NewG2()
	point, err := g2.HashToCurve(message, []byte(BLSDST))
	if err != nil {
		log.Errorf("BLSSign: failed to hash message to curve: %v", err)
		return nil, fmt.Errorf("failed to hash message to curve: %w", err)
	}

	sig := g2.New()
	g2.MulScalar(sig, point, scalar)
	return g2.ToCompressed(sig), nil
}

// BLSGeneratePrivateKeyWithSeed 使用 HKDF 从种子派生 BLS 私钥
func BLSGeneratePrivateKeyWithSeed(ikm []byte) ([]byte, error) {
	if len(ikm) < 32 {
		return nil, fmt.Errorf("seed must be at least 32 bytes, got %d", len(ikm))
	}

	reader := hkdf.New(sha256.New, ikm, []byte("BLS-SIG-KEYGEN-SALT-"), nil)

	privKey := make([]byte, BLSPrivateKeyBytes)
	if _, err := io.ReadFull(reader, privKey); err != nil {
		log.Errorf("BLSGeneratePrivateKeyWithSeed: failed to derive private key: %v", err)
		return nil, fmt.Errorf("failed to derive private key: %w", err)
	}
	return privKey, nil
}
