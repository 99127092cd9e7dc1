package prompt

import "unicode/utf8"

// Tokeniser counts tokens for budget arithmetic. It is never used for
// semantic splitting, so an estimate is acceptable as long as it is
// consistent within a request.
type Tokeniser interface {
	Encode(text string) int
}

// Estimator is the default Tokeniser: rune count divided by 2, a
// conservative estimate that works for both English (~4 chars/token) and
// CJK (~1.5 chars/token) text.
type Estimator struct{}

// Encode returns the estimated token count for text.
func (Estimator) Encode(text string) int {
	return utf8.RuneCountInString(text) / 2
}
