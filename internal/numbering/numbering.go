// Package numbering proposes human-readable sequential codes such as INV07,
// SUN008 or CUST012.
//
// The authority is advisory. Two callers reading the same last code will
// propose the same candidate; the owning table carries a unique constraint
// and Issue retries with a fresh read when the insert reports ErrConflict.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrConflict is returned by a create callback when the proposed code is
// already taken, and by Issue when every attempt collided.
var ErrConflict = errors.New("numbering: code already issued")

// DefaultAttempts bounds Issue retries.
const DefaultAttempts = 5

// Scheme describes one code family.
type Scheme struct {
	Prefix string
	Width  int
	// Legacy prefixes continue the same sequence.
	Legacy []string
}

var (
	Invoice   = Scheme{Prefix: "INV", Width: 2}
	Item      = Scheme{Prefix: "SUN", Width: 3}
	Service   = Scheme{Prefix: "SRV", Width: 3}
	Customer  = Scheme{Prefix: "CUST", Width: 3}
	Enquiry   = Scheme{Prefix: "ENQ", Width: 3}
	Quotation = Scheme{Prefix: "QN", Width: 3, Legacy: []string{"QT"}}
)

// NextCode returns the code following last using a three digit sequence.
func NextCode(prefix, last string) string {
	return Scheme{Prefix: prefix, Width: 3}.Next(last)
}

// Next returns the code following last. An empty, foreign or unparsable
// last code restarts the sequence at 1.
func (s Scheme) Next(last string) string {
	return s.Format(s.sequence(last) + 1)
}

// Format renders seq with the scheme's prefix and zero padding.
func (s Scheme) Format(seq int64) string {
	return fmt.Sprintf("%s%0*d", s.Prefix, s.Width, seq)
}

func (s Scheme) sequence(last string) int64 {
	last = strings.TrimSpace(last)
	if last == "" || !s.owns(last) {
		return 0
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, last)
	if digits == "" {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (s Scheme) owns(code string) bool {
	if strings.HasPrefix(code, s.Prefix) {
		return true
	}
	for _, p := range s.Legacy {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// LastCodeSource reads the most recently issued code for a scheme. It
// returns "" when nothing has been issued yet.
type LastCodeSource interface {
	LastCode(ctx context.Context, scheme Scheme) (string, error)
}

// LastCodeFunc adapts a function to LastCodeSource.
type LastCodeFunc func(ctx context.Context, scheme Scheme) (string, error)

// LastCode implements LastCodeSource.
func (f LastCodeFunc) LastCode(ctx context.Context, scheme Scheme) (string, error) {
	return f(ctx, scheme)
}

// Issue proposes the next code and hands it to create. When create reports
// ErrConflict the last code is read again and a new candidate is tried.
func Issue(ctx context.Context, source LastCodeSource, scheme Scheme, attempts int, create func(context.Context, string) error) (string, error) {
	if source == nil || create == nil {
		return "", errors.New("numbering: source and create are required")
	}
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		last, err := source.LastCode(ctx, scheme)
		if err != nil {
			return "", fmt.Errorf("numbering: read last %s code: %w", scheme.Prefix, err)
		}
		code := scheme.Next(last)
		err = create(ctx, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrConflict) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s after %d attempts", ErrConflict, scheme.Prefix, attempts)
}
