package budget

import "fmt"

// ErrTokenLimitExceeded is returned when a source would push the knowledge
// total past the configured ceiling.
type ErrTokenLimitExceeded struct {
	Current    int
	Additional int
	Projected  int
	Max        int
}

func (e *ErrTokenLimitExceeded) Error() string {
	return fmt.Sprintf("Token limit exceeded. Current: %d, Additional: %d, Total would be: %d, Max: %d",
		e.Current, e.Additional, e.Projected, e.Max)
}
