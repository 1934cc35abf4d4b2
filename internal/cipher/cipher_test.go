package cipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/dashtam/provider-sync/internal/ports"
)

func testKeyring() map[uint32][]byte {
	key1 := make([]byte, chacha20poly1305.KeySize)
	key2 := make([]byte, chacha20poly1305.KeySize)
	for i := range key1 {
		key1[i] = byte(i)
	}
	for i := range key2 {
		key2[i] = byte(i + 1)
	}
	return map[uint32][]byte{1: key1, 2: key2}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c, err := New(testKeyring(), 1)
	require.NoError(t, err)

	bundle := ports.CredentialBundle{"access_token": "abc123", "expires_in": 3600}
	ciphertext, err := c.Encrypt(bundle)
	require.NoError(t, err)

	decoded, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "abc123", decoded["access_token"])
}

func TestNew_RejectsUnknownPrimaryKey(t *testing.T) {
	_, err := New(testKeyring(), 99)
	assert.Error(t, err)
}

func TestNew_RejectsWrongKeySize(t *testing.T) {
	_, err := New(map[uint32][]byte{1: []byte("too-short")}, 1)
	assert.Error(t, err)
}

func TestDecrypt_AfterKeyRotationStillWorks(t *testing.T) {
	keyring := testKeyring()
	cOld, err := New(keyring, 1)
	require.NoError(t, err)
	ciphertext, err := cOld.Encrypt(ports.CredentialBundle{"k": "v"})
	require.NoError(t, err)

	cNew, err := New(keyring, 2)
	require.NoError(t, err)
	decoded, err := cNew.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "v", decoded["k"])
}

func TestDecrypt_RejectsTamperedCiphertext(t *testing.T) {
	c, err := New(testKeyring(), 1)
	require.NoError(t, err)
	ciphertext, err := c.Encrypt(ports.CredentialBundle{"k": "v"})
	require.NoError(t, err)

	ciphertext[len(ciphertext)-1] ^= 0xFF
	_, err = c.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestDecrypt_RejectsUnknownKeyID(t *testing.T) {
	c, err := New(testKeyring(), 1)
	require.NoError(t, err)
	ciphertext, err := c.Encrypt(ports.CredentialBundle{"k": "v"})
	require.NoError(t, err)

	onlyKey2 := map[uint32][]byte{2: testKeyring()[2]}
	cOther, err := New(onlyKey2, 2)
	require.NoError(t, err)
	_, err = cOther.Decrypt(ciphertext)
	assert.Error(t, err)
}
