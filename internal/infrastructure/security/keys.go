package security

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const keySalt = "cio-harness"

// Keys holds the purpose-specific keys derived from the harness secret.
type Keys struct {
	Signing    []byte // HS256 visitor tokens
	Encryption []byte // AES-256-GCM credential encryption
}

// DeriveKeys expands one secret into independent signing and encryption keys.
func DeriveKeys(secret string) (*Keys, error) {
	if secret == "" {
		return nil, errors.New("empty harness secret")
	}

	signing, err := derive(secret, "visitor-token", 32)
	if err != nil {
		return nil, err
	}
	encryption, err := derive(secret, "credential-encryption", 32)
	if err != nil {
		return nil, err
	}
	return &Keys{Signing: signing, Encryption: encryption}, nil
}

func derive(secret, info string, size int) ([]byte, error) {
	reader := hkdf.New(sha256.New, []byte(secret), []byte(keySalt), []byte(info))
	key := make([]byte, size)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}
