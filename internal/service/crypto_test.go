package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESEncryptionService_RoundTrip(t *testing.T) {
	svc, err := NewAESEncryptionService(strings.Repeat("ab", 32))
	require.NoError(t, err)

	ciphertext, err := svc.Encrypt("super-secret-key")
	require.NoError(t, err)
	assert.NotEqual(t, "super-secret-key", ciphertext)

	plaintext, err := svc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "super-secret-key", plaintext)
}

func TestAESEncryptionService_BadKey(t *testing.T) {
	_, err := NewAESEncryptionService("deadbeef") // too short
	assert.Error(t, err)

	_, err = NewAESEncryptionService("not-hex")
	assert.Error(t, err)
}

func TestAESEncryptionService_TamperedCiphertext(t *testing.T) {
	svc, err := NewAESEncryptionService(strings.Repeat("cd", 32))
	require.NoError(t, err)

	ciphertext, err := svc.Encrypt("payload")
	require.NoError(t, err)

	tampered := ciphertext[:len(ciphertext)-2] + "00"
	_, err = svc.Decrypt(tampered)
	assert.Error(t, err)
}

func TestHMACSignatureService(t *testing.T) {
	svc := NewHMACSignatureService()

	payload := svc.BuildCanonicalString("POST", "/api/v1/settlements/onramp", 1700000000, "nonce-1", `{"amount":1000}`)
	assert.Equal(t, "POST|/api/v1/settlements/onramp|1700000000|nonce-1|{\"amount\":1000}", payload)

	sig := svc.Sign("secret", payload)
	assert.Len(t, sig, 64)
	assert.True(t, svc.Verify("secret", payload, sig))
	assert.False(t, svc.Verify("wrong-secret", payload, sig))
	assert.False(t, svc.Verify("secret", payload+"x", sig))
}

func TestArgon2HashService(t *testing.T) {
	svc := NewArgon2HashService()

	hash, err := svc.Hash("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := svc.Verify("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Verify("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJWTTokenService_RoundTrip(t *testing.T) {
	svc := NewJWTTokenService("test-jwt-secret", time.Hour, "usdc-settlement-ledger")

	token, expiresAt, err := svc.Generate("authorityWallet")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "authorityWallet", claims.Authority)
}

func TestJWTTokenService_RejectsTampering(t *testing.T) {
	svc := NewJWTTokenService("test-jwt-secret", time.Hour, "usdc-settlement-ledger")
	other := NewJWTTokenService("another-secret", time.Hour, "usdc-settlement-ledger")

	token, _, err := other.Generate("authorityWallet")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)

	_, err = svc.Validate("not.a.token")
	assert.Error(t, err)
}

func TestJWTTokenService_RejectsExpired(t *testing.T) {
	svc := NewJWTTokenService("test-jwt-secret", -time.Minute, "usdc-settlement-ledger")

	token, _, err := svc.Generate("authorityWallet")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}
