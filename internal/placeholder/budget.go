package placeholder

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// passBudget counts rescans of one text and enforces the pass limit.
//
// It catches long resolution chains (A → B → C → ... ) as opposed to the
// repeated texts caught by textHistory. Together they guarantee that
// Resolve terminates.
type passBudget struct {
	maxPasses int
	current   int
}

func newPassBudget(maxPasses int) *passBudget {
	return &passBudget{maxPasses: maxPasses}
}

// Check increments the pass counter and validates it against the limit.
func (b *passBudget) Check() error {
	b.current++
	if b.current > b.maxPasses {
		return &PassesExceededError{Passes: b.current, Limit: b.maxPasses}
	}
	return nil
}

// PassesExceededError is returned when tokens remain after the pass budget
// is spent.
type PassesExceededError struct {
	Passes int
	Limit  int
}

// Error implements the error interface.
func (e *PassesExceededError) Error() string {
	return fmt.Sprintf("tokens remain after %d passes (limit %d)", e.Passes-1, e.Limit)
}

// IsPassesExceededError returns true if the error is a PassesExceededError.
// Uses errors.As to handle wrapped errors.
func IsPassesExceededError(err error) bool {
	var pe *PassesExceededError
	return errors.As(err, &pe)
}

// textHistory remembers every intermediate text of one resolution. Seeing a
// text twice means a token expanded back into itself.
type textHistory struct {
	seen map[[sha256.Size]byte]struct{}
}

func newTextHistory() *textHistory {
	return &textHistory{seen: make(map[[sha256.Size]byte]struct{})}
}

// Record adds text and reports whether it had been seen before.
func (h *textHistory) Record(text string) (repeated bool) {
	sum := sha256.Sum256([]byte(text))
	if _, ok := h.seen[sum]; ok {
		return true
	}
	h.seen[sum] = struct{}{}
	return false
}

// ErrCycle is wrapped when resolution revisits an intermediate text.
var ErrCycle = errors.New("resolution cycle detected")
