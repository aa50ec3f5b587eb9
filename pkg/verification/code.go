// Package verification issues and checks the one-time codes a donor hands to
// the volunteer at pickup. A schedule with an outstanding code cannot be
// completed until the code is verified.
package verification

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"

	"github.com/kindnest/kindnest-api/pkg/models"
)

const (
	codeMin   = 100000
	codeRange = 900000
)

// CodeIssuer produces a new code for a schedule.
type CodeIssuer interface {
	Issue() (string, error)
}

// CodeVerifier checks a submitted code against a schedule. It must not
// mutate the schedule.
type CodeVerifier interface {
	Check(s *models.Schedule, submitted string) bool
}

// RandomIssuer issues 6-digit codes uniformly distributed over
// 100000-999999.
type RandomIssuer struct{}

func (RandomIssuer) Issue() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// ExactVerifier accepts only the exact code stored on the schedule.
type ExactVerifier struct{}

func (ExactVerifier) Check(s *models.Schedule, submitted string) bool {
	if s == nil || !s.CodeIssued() || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*s.OTP), []byte(submitted)) == 1
}

// Issue stores a fresh code on s and clears its verified flag.
func Issue(issuer CodeIssuer, s *models.Schedule) (string, error) {
	code, err := issuer.Issue()
	if err != nil {
		return "", err
	}
	s.OTP = &code
	s.OTPVerified = false
	return code, nil
}

// Verify checks submitted against s and marks s verified on a match. A
// mismatch leaves s untouched. Verifying an already verified schedule with
// the right code succeeds again without further change.
func Verify(verifier CodeVerifier, s *models.Schedule, submitted string) bool {
	if !verifier.Check(s, submitted) {
		return false
	}
	s.OTPVerified = true
	return true
}
