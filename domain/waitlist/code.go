package waitlist

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// CodeGenerator yields a fresh verification code.
type CodeGenerator func() (string, error)

// GenerateVerificationCode returns a uniformly random six digit code in [100000, 999999].
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}
