package interval

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
)

// Fraction returns a uniformly distributed value in [0, 1) built from 53
// bits read from r.
func Fraction(r io.Reader) (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read random source: %w", err)
	}
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53), nil
}

// IntBetween returns a uniformly distributed integer in [min, max].
func IntBetween(r io.Reader, min, max int) (int, error) {
	if max < min {
		return 0, fmt.Errorf("invalid range [%d, %d]", min, max)
	}
	if min == max {
		return min, nil
	}
	n, err := rand.Int(r, big.NewInt(int64(max-min)+1))
	if err != nil {
		return 0, fmt.Errorf("read random source: %w", err)
	}
	return min + int(n.Int64()), nil
}
