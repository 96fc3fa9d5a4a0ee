package squad

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// JoinCodeLength is the number of digits in a squad join code.
const JoinCodeLength = 4

const defaultAllocateAttempts = 16

var (
	codeSpace            = big.NewInt(10000)
	randReader io.Reader = rand.Reader
)

// GenerateJoinCode returns a random 4-digit code; leading zeros are kept.
func GenerateJoinCode() (string, error) {
	n, err := rand.Int(randReader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate join code: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// ValidateJoinCode checks the shape of a code without any lookup.
func ValidateJoinCode(code string) error {
	if len(code) != JoinCodeLength {
		return ErrMalformedCode
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return ErrMalformedCode
		}
	}
	return nil
}

// CodeTaken reports whether a code is already assigned to a room.
type CodeTaken func(ctx context.Context, code string) (bool, error)

// AllocateJoinCode draws codes until one is free. attempts <= 0 uses a default.
func AllocateJoinCode(ctx context.Context, taken CodeTaken, attempts int) (string, error) {
	if attempts <= 0 {
		attempts = defaultAllocateAttempts
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := GenerateJoinCode()
		if err != nil {
			return "", err
		}
		used, err := taken(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check join code: %w", err)
		}
		if !used {
			return code, nil
		}
	}
	return "", ErrCodesExhausted
}
