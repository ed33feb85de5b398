// Package ss58 encodes and decodes Substrate SS58 account addresses.
package ss58

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// Errors returned by Decode.
var (
	ErrInvalidAddress  = errors.New("ss58: invalid address")
	ErrInvalidChecksum = errors.New("ss58: invalid checksum")
	ErrInvalidPrefix   = errors.New("ss58: invalid prefix")
)

// PublicKeyLength is the length of an account id.
const PublicKeyLength = 32

const (
	checksumLength = 2
	maxPrefix      = 16383
)

var checksumPreimage = []byte("SS58PRE")

// Encode renders a 32-byte account id under prefix.
func Encode(pub []byte, prefix uint16) (string, error) {
	if len(pub) != PublicKeyLength {
		return "", fmt.Errorf("%w: public key is %d bytes", ErrInvalidAddress, len(pub))
	}
	if prefix > maxPrefix {
		return "", fmt.Errorf("%w: %d", ErrInvalidPrefix, prefix)
	}

	payload := append(prefixBytes(prefix), pub...)
	sum := checksum(payload)
	return base58.Encode(append(payload, sum[:checksumLength]...)), nil
}

// Decode parses an address and returns the account id and its prefix.
func Decode(addr string) ([]byte, uint16, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) < 1 {
		return nil, 0, ErrInvalidAddress
	}

	var prefix uint16
	prefixLen := 1
	switch {
	case raw[0] < 64:
		prefix = uint16(raw[0])
	case raw[0] < 128:
		if len(raw) < 2 {
			return nil, 0, ErrInvalidAddress
		}
		lower := (raw[0] << 2) | (raw[1] >> 6)
		upper := raw[1] & 0x3f
		prefix = uint16(lower) | uint16(upper)<<8
		prefixLen = 2
	default:
		return nil, 0, fmt.Errorf("%w: reserved prefix byte %d", ErrInvalidPrefix, raw[0])
	}

	if len(raw) != prefixLen+PublicKeyLength+checksumLength {
		return nil, 0, fmt.Errorf("%w: %d bytes", ErrInvalidAddress, len(raw))
	}

	body := raw[:prefixLen+PublicKeyLength]
	sum := checksum(body)
	if !bytes.Equal(sum[:checksumLength], raw[len(body):]) {
		return nil, 0, ErrInvalidChecksum
	}

	pub := make([]byte, PublicKeyLength)
	copy(pub, raw[prefixLen:])
	return pub, prefix, nil
}

// Normalize returns addr as an address under prefix.
// It accepts SS58 under any prefix or a 0x-prefixed hex account id.
func Normalize(addr string, prefix uint16) (string, error) {
	if strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X") {
		pub, err := hex.DecodeString(addr[2:])
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		return Encode(pub, prefix)
	}

	pub, p, err := Decode(addr)
	if err != nil {
		return "", err
	}
	if p == prefix {
		return addr, nil
	}
	return Encode(pub, prefix)
}

func prefixBytes(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}
	return []byte{
		byte((prefix&0x00fc)>>2) | 0x40,
		byte(prefix>>8) | byte((prefix&0x0003)<<6),
	}
}

func checksum(payload []byte) [blake2b.Size]byte {
	return blake2b.Sum512(append(append([]byte{}, checksumPreimage...), payload...))
}
