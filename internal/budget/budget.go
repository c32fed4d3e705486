package budget

// DefaultMaxTokens is the knowledge ceiling used when no positive maximum is configured.
const DefaultMaxTokens = 120000

// Tracker answers whether adding tokens to an existing total would breach the ceiling.
type Tracker struct {
	MaxTokens int
}

// NewTracker returns a tracker for max tokens, falling back to DefaultMaxTokens.
func NewTracker(max int) Tracker {
	if max <= 0 {
		max = DefaultMaxTokens
	}
	return Tracker{MaxTokens: max}
}

// WouldExceed reports whether current+additional is strictly above the ceiling,
// together with the projected total. It has no side effects.
func (t Tracker) WouldExceed(current, additional int) (bool, int) {
	projected := current + additional
	return projected > t.max(), projected
}

// Check is WouldExceed expressed as an error.
func (t Tracker) Check(current, additional int) error {
	exceeds, projected := t.WouldExceed(current, additional)
	if !exceeds {
		return nil
	}
	return &ErrTokenLimitExceeded{
		Current:    current,
		Additional: additional,
		Projected:  projected,
		Max:        t.max(),
	}
}

func (t Tracker) max() int {
	if t.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return t.MaxTokens
}

// Running tracks a batch's total as sources are admitted one at a time.
// It is not safe for concurrent use; a batch is processed sequentially.
type Running struct {
	tracker Tracker
	total   int
}

// Start seeds a running total from the authoritative total of an agent's records.
func (t Tracker) Start(current int) *Running {
	return &Running{tracker: t, total: current}
}

// Admit adds tokens to the running total. When the ceiling would be breached the
// total is left untouched and *ErrTokenLimitExceeded is returned.
func (r *Running) Admit(tokens int) error {
	if err := r.tracker.Check(r.total, tokens); err != nil {
		return err
	}
	r.total += tokens
	return nil
}

// Total returns the tokens admitted so far, seed included.
func (r *Running) Total() int {
	return r.total
}

// Remaining returns how many tokens can still be admitted.
func (r *Running) Remaining() int {
	rem := r.tracker.max() - r.total
	if rem < 0 {
		return 0
	}
	return rem
}
