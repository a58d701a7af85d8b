package krypto

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var ErrInvalidLength = errors.New("invalid length")

// RandomBytes returns n bytes read from the system's secure random source.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, ErrInvalidLength
	}

	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return nil, err
	}

	return b, nil
}

// RandomString returns a random string of n alphanumeric characters.
// Every character is picked uniformly, so the result is usable as a salt
// or as an unguessable marker.
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", ErrInvalidLength
	}

	max := big.NewInt(int64(len(alphanumeric)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphanumeric[idx.Int64()]
	}

	return string(out), nil
}
