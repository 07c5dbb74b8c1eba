// Package addrconv rewrites bech32 account addresses to another chain prefix
package addrconv

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// Sentinel errors for address conversion
var (
	ErrInvalidAddress = errors.New("invalid bech32 address")
	ErrInvalidPrefix  = errors.New("invalid bech32 prefix")
)

// Convert re-encodes addr under prefix, keeping the address bytes
func Convert(addr, prefix string) (string, error) {
	if prefix == "" {
		return "", ErrInvalidPrefix
	}

	_, data, err := bech32.Decode(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidAddress, addr, err)
	}

	out, err := bech32.Encode(prefix, data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidPrefix, prefix, err)
	}
	return out, nil
}

// Rewriter returns a function converting addresses to prefix.
// An empty prefix yields the identity.
func Rewriter(prefix string) func(string) (string, error) {
	if prefix == "" {
		return func(addr string) (string, error) { return addr, nil }
	}
	return func(addr string) (string, error) { return Convert(addr, prefix) }
}
