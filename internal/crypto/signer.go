package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Pre-computed keccak256 of the canonical EIP-712 type strings.
var (
	// EIP712Domain(string name,string version,uint256 chainId)
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)

	// Registration(address account,uint256 expiresAt)
	registrationTypeHash = ethcrypto.Keccak256(
		[]byte("Registration(address account,uint256 expiresAt)"),
	)

	// Order(address account,string symbol,uint8 side,uint256 price,uint256 size,uint256 nonce,uint8 reduceOnly)
	orderTypeHash = ethcrypto.Keccak256(
		[]byte("Order(address account,string symbol,uint8 side,uint256 price,uint256 size,uint256 nonce,uint8 reduceOnly)"),
	)
)

// OrderDigest holds the order fields covered by the exchange's EIP-712 order
// signature. Price and size are X18 fixed-point decimal strings so precision
// survives the JSON boundary.
type OrderDigest struct {
	Account    string
	Symbol     string
	Side       int // 0 = BUY, 1 = SELL
	Price      string
	Size       string
	Nonce      int64
	ReduceOnly bool
}

// Signer produces the EIP-712 signatures the exchange's REST API requires
// for session registration and order placement.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	domainSep  []byte
}

// NewSigner creates a Signer from a hex-encoded secp256k1 signing key.
func NewSigner(privateKeyHex string, chainID int) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid signing key: %w", err)
	}

	s := &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}
	s.domainSep = buildDomainSeparator("VestRouter", "1", chainID)
	return s, nil
}

// Address returns the account address derived from the signing key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignRegistration signs the session-registration message that exchanges a
// signing key for an API session. The returned string is a hex-encoded
// 65-byte signature with recovery byte.
func (s *Signer) SignRegistration(expiresAt int64) (string, error) {
	structHash := ethcrypto.Keccak256(
		concatBytes(
			registrationTypeHash,
			common.LeftPadBytes(s.address.Bytes(), 32),
			bigIntTo32Bytes(big.NewInt(expiresAt)),
		),
	)
	return s.signDigest(eip712Hash(s.domainSep, structHash))
}

// SignOrder signs an order digest for submission. It returns a hex-encoded
// 65-byte signature.
func (s *Signer) SignOrder(o OrderDigest) (string, error) {
	price, ok := new(big.Int).SetString(o.Price, 10)
	if !ok {
		return "", fmt.Errorf("crypto/signer: invalid price %q", o.Price)
	}
	size, ok := new(big.Int).SetString(o.Size, 10)
	if !ok {
		return "", fmt.Errorf("crypto/signer: invalid size %q", o.Size)
	}

	reduceOnly := big.NewInt(0)
	if o.ReduceOnly {
		reduceOnly = big.NewInt(1)
	}

	structHash := ethcrypto.Keccak256(
		concatBytes(
			orderTypeHash,
			common.LeftPadBytes(common.HexToAddress(o.Account).Bytes(), 32),
			ethcrypto.Keccak256([]byte(o.Symbol)),
			bigIntTo32Bytes(big.NewInt(int64(o.Side))),
			bigIntTo32Bytes(price),
			bigIntTo32Bytes(size),
			bigIntTo32Bytes(big.NewInt(o.Nonce)),
			bigIntTo32Bytes(reduceOnly),
		),
	)
	return s.signDigest(eip712Hash(s.domainSep, structHash))
}

// buildDomainSeparator returns keccak256(abi.encode(typeHash, nameHash, versionHash, chainId)).
func buildDomainSeparator(name, version string, chainID int) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			eip712DomainTypeHash,
			ethcrypto.Keccak256([]byte(name)),
			ethcrypto.Keccak256([]byte(version)),
			bigIntTo32Bytes(big.NewInt(int64(chainID))),
		),
	)
}

// eip712Hash computes the final EIP-712 digest:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			[]byte{0x19, 0x01},
			domainSep,
			structHash,
		),
	)
}

// signDigest signs a 32-byte digest using secp256k1 and returns the
// hex-encoded signature (r || s || v, 65 bytes).
func (s *Signer) signDigest(digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}

	// go-ethereum returns v in {0,1}; the API expects v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + hex.EncodeToString(sig), nil
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[:32]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
