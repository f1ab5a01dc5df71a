package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// NewOrderNumber returns ORD-YYMMDD-NNNNNN for the UTC date of now.
// Six random digits leave collisions possible; callers must not rely on uniqueness.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%06d", now.UTC().Format("060102"), randomDigits(1_000_000))
}

// NewReceiptNumber returns RCP followed by YYMMDDHHmm and three random digits.
func NewReceiptNumber(now time.Time) string {
	return fmt.Sprintf("RCP%s%03d", now.UTC().Format("0601021504"), randomDigits(1_000))
}

func randomDigits(limit int64) int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(limit))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is unavailable.
		return time.Now().UnixNano() % limit
	}
	return n.Int64()
}
