// Package cipher implements the CipherPort with ChaCha20-Poly1305 AEAD
// encryption over a msgpack-serialized credential bundle. Ciphertext embeds
// a 4-byte key identifier ahead of the nonce so keys can rotate: old
// ciphertext keeps decrypting under its original key while new writes use
// the current primary.
package cipher

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/dashtam/provider-sync/internal/ports"
)

const keyIDLen = 4

// Cipher is a CipherPort backed by a keyring: one active key used for new
// encryptions, plus any number of retired keys still accepted for decrypt.
type Cipher struct {
	keys         map[uint32][]byte
	primaryKeyID uint32
}

// New builds a Cipher. Every key must be exactly 32 bytes
// (chacha20poly1305.KeySize); primaryKeyID must be present in keys.
func New(keys map[uint32][]byte, primaryKeyID uint32) (*Cipher, error) {
	if _, ok := keys[primaryKeyID]; !ok {
		return nil, fmt.Errorf("cipher: primary key id %d not present in keyring", primaryKeyID)
	}
	for id, key := range keys {
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("cipher: key id %d must be %d bytes, got %d", id, chacha20poly1305.KeySize, len(key))
		}
	}
	return &Cipher{keys: keys, primaryKeyID: primaryKeyID}, nil
}

// Encrypt msgpack-serializes the bundle and seals it under the primary key.
func (c *Cipher) Encrypt(plaintext ports.CredentialBundle) ([]byte, error) {
	data, err := msgpack.Marshal(map[string]any(plaintext))
	if err != nil {
		return nil, fmt.Errorf("cipher: marshal bundle: %w", err)
	}

	aead, err := chacha20poly1305.New(c.keys[c.primaryKeyID])
	if err != nil {
		return nil, fmt.Errorf("cipher: init aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cipher: generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, data, nil)

	out := make([]byte, 0, keyIDLen+len(nonce)+len(sealed))
	var keyIDBytes [keyIDLen]byte
	binary.BigEndian.PutUint32(keyIDBytes[:], c.primaryKeyID)
	out = append(out, keyIDBytes[:]...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt reads the embedded key id, selects the matching key from the
// keyring (supporting decryption under retired keys after rotation), and
// opens the sealed bundle.
func (c *Cipher) Decrypt(ciphertext []byte) (ports.CredentialBundle, error) {
	if len(ciphertext) < keyIDLen {
		return nil, fmt.Errorf("cipher: ciphertext too short")
	}
	keyID := binary.BigEndian.Uint32(ciphertext[:keyIDLen])
	key, ok := c.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("cipher: unknown key id %d", keyID)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: init aead: %w", err)
	}

	rest := ciphertext[keyIDLen:]
	if len(rest) < aead.NonceSize() {
		return nil, fmt.Errorf("cipher: ciphertext missing nonce")
	}
	nonce, sealed := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	data, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("cipher: decryption failed: %w", err)
	}

	var bundle map[string]any
	if err := msgpack.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("cipher: unmarshal bundle: %w", err)
	}
	return ports.CredentialBundle(bundle), nil
}
