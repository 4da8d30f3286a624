package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// Alphabets exclude easily confusable characters (I, l, 0, 1, O).
const (
	tempPasswordUpper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	tempPasswordLower   = "abcdefghijkmnopqrstuvwxyz"
	tempPasswordDigits  = "23456789"
	tempPasswordSymbols = "!@#$%^&*"
)

const defaultTempPasswordLength = 12

// HashPassword produces a bcrypt hash with a per-call random salt.
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// ComparePasswords reports whether plain matches the stored hash.
// A malformed hash compares as false, never as an error.
func ComparePasswords(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// GenerateTempPassword produces a password guaranteed to contain at least
// one character from each class, then shuffled. This is a usability default
// for accounts created without a password; the user is expected to change it.
func GenerateTempPassword(length int) (string, error) {
	if length < 4 {
		length = defaultTempPasswordLength
	}
	all := tempPasswordUpper + tempPasswordLower + tempPasswordDigits + tempPasswordSymbols

	pwd := make([]byte, 0, length)
	for _, alphabet := range []string{tempPasswordUpper, tempPasswordLower, tempPasswordDigits, tempPasswordSymbols} {
		c, err := randomChar(alphabet)
		if err != nil {
			return "", err
		}
		pwd = append(pwd, c)
	}
	for len(pwd) < length {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		pwd = append(pwd, c)
	}

	// Fisher-Yates so the guaranteed classes don't sit at fixed positions.
	for i := len(pwd) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", err
		}
		pwd[i], pwd[j] = pwd[j], pwd[i]
	}

	return string(pwd), nil
}

func randomChar(alphabet string) (byte, error) {
	i, err := randomInt(len(alphabet))
	if err != nil {
		return 0, err
	}
	return alphabet[i], nil
}

func randomInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return int(n.Int64()), nil
}
