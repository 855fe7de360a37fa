package crypto

import (
	"strings"
	"testing"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe512961708279f2e3e8a5d4b8e3e3e8"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("round trip = %s, want %s", got, testKeyHex)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Error("decrypt with wrong password succeeded")
	}
}

func TestLoadKeyRawTakesPrecedence(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex, EncryptedKeyPath: "/does/not/exist"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("key = %s, want %s", got, testKeyHex)
	}
}

func TestSignerProducesRecoverableSignatures(t *testing.T) {
	s, err := NewSigner(testKeyHex, 1)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	if s.Address().Hex() == "0x0000000000000000000000000000000000000000" {
		t.Fatal("derived zero address")
	}

	sig, err := s.SignOrder(OrderDigest{
		Account:    s.Address().Hex(),
		Symbol:     "BTC-PERP",
		Side:       1,
		Price:      "50000000000000000000000",
		Size:       "500000000000000000000",
		Nonce:      7,
		ReduceOnly: false,
	})
	if err != nil {
		t.Fatalf("sign order: %v", err)
	}
	// 0x prefix plus 65 bytes hex.
	if !strings.HasPrefix(sig, "0x") || len(sig) != 2+130 {
		t.Errorf("signature = %q, want 0x-prefixed 65-byte hex", sig)
	}

	// Same payload signs identically; a different nonce must not.
	again, err := s.SignOrder(OrderDigest{
		Account: s.Address().Hex(), Symbol: "BTC-PERP", Side: 1,
		Price: "50000000000000000000000", Size: "500000000000000000000", Nonce: 8,
	})
	if err != nil {
		t.Fatal(err)
	}
	if again == sig {
		t.Error("different nonces produced identical signatures")
	}
}

func TestHMACHeadersDeterministic(t *testing.T) {
	auth := &HMACAuth{Key: "key-1", Secret: "secret-1"}
	a := auth.HeadersAt("POST", "/orders", `{"symbol":"BTC-PERP"}`, 1700000000)
	b := auth.HeadersAt("POST", "/orders", `{"symbol":"BTC-PERP"}`, 1700000000)

	if a["X-SIGNATURE"] != b["X-SIGNATURE"] {
		t.Error("signatures differ for identical input")
	}
	if a["X-API-KEY"] != "key-1" || a["X-TIMESTAMP"] != "1700000000" {
		t.Errorf("headers = %v", a)
	}
	c := auth.HeadersAt("POST", "/orders", `{"symbol":"ETH-PERP"}`, 1700000000)
	if c["X-SIGNATURE"] == a["X-SIGNATURE"] {
		t.Error("different bodies produced identical signatures")
	}
}

func TestHMACStringRedacts(t *testing.T) {
	auth := &HMACAuth{Key: "key-123456", Secret: "secret-abcdef"}
	s := auth.String()
	if strings.Contains(s, "123456") || strings.Contains(s, "abcdef") {
		t.Errorf("String leaked credentials: %s", s)
	}
}
