package logfilter

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// DefaultCharsPerToken approximates how many characters make up one model token.
const DefaultCharsPerToken = 4.0

// ErrInvalidBudget is returned when a budget cannot bound any output.
var ErrInvalidBudget = errors.New("invalid token budget")

// Budget is the size ceiling for a single reduced file, expressed in estimated
// language-model tokens.
type Budget struct {
	MaxTokens     int
	CharsPerToken float64
}

// NewBudget returns a budget with the default characters-per-token ratio.
func NewBudget(maxTokens int) Budget {
	return Budget{MaxTokens: maxTokens, CharsPerToken: DefaultCharsPerToken}
}

// Validate reports whether the budget is usable.
func (b Budget) Validate() error {
	if b.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive, got %d", ErrInvalidBudget, b.MaxTokens)
	}
	if b.CharsPerToken <= 0 || math.IsNaN(b.CharsPerToken) || math.IsInf(b.CharsPerToken, 0) {
		return fmt.Errorf("%w: chars_per_token must be positive, got %v", ErrInvalidBudget, b.CharsPerToken)
	}
	return nil
}

// Estimate returns ceil(characters / CharsPerToken).
func (b Budget) Estimate(text string) int {
	return EstimateTokens(text, b.CharsPerToken)
}

// Fits reports whether text is within the budget.
func (b Budget) Fits(text string) bool {
	return b.Estimate(text) <= b.MaxTokens
}

// MaxChars is the character count implied by the budget.
func (b Budget) MaxChars() int {
	return int(math.Floor(float64(b.MaxTokens) * b.cpt()))
}

func (b Budget) cpt() float64 {
	if b.CharsPerToken <= 0 {
		return DefaultCharsPerToken
	}
	return b.CharsPerToken
}

// EstimateTokens approximates the token count of text. A non-positive ratio
// falls back to DefaultCharsPerToken.
func EstimateTokens(text string, charsPerToken float64) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return int(math.Ceil(float64(n) / charsPerToken))
}
