// Package engine runs an LLM conversation with tool use and exposes it as a
// sequence of turns.
package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researcher/internal/tools"
)

// NoResponse is the answer reported when a run yields no turns.
var NoResponse = Turn{Role: RoleAssistant, Content: "No response generated."}

// ErrNotConfigured is the cause reported by engines built without credentials.
var ErrNotConfigured = errors.New("answering model is not configured")

// Engine answers one query. Run yields every new message of the conversation
// in order, starting with the user's; the last one is the answer. A sequence
// can be ranged over once.
type Engine interface {
	Run(ctx context.Context, query string) iter.Seq2[Turn, error]
}

// Factory builds an engine for one session from composed instructions.
type Factory func(instructions string, tools tools.Set) Engine

// ErrEngineFailure wraps any failure raised while the engine runs.
type ErrEngineFailure struct {
	Cause error
}

func (e *ErrEngineFailure) Error() string {
	return fmt.Sprintf("answering engine failed: %v", e.Cause)
}

func (e *ErrEngineFailure) Unwrap() error { return e.Cause }

// Final drains the run and returns its last turn, logging each turn as it
// arrives. An empty run answers with NoResponse.
func Final(ctx context.Context, eng Engine, query string, log *zap.Logger) (Turn, error) {
	if log == nil {
		log = zap.NewNop()
	}
	last := NoResponse
	count := 0
	for turn, err := range eng.Run(ctx, query) {
		if err != nil {
			return Turn{}, &ErrEngineFailure{Cause: err}
		}
		count++
		last = turn
		logTurn(log, turn)
	}
	log.Debug("research complete", zap.Int("turns", count))
	return last, nil
}

func logTurn(log *zap.Logger, t Turn) {
	if len(t.ToolCalls) > 0 && t.Content == "" {
		for _, c := range t.ToolCalls {
			log.Info("tool request", zap.String("role", string(t.Role)),
				zap.String("tool", c.Name), zap.String("args", Preview(c.Arguments)))
		}
		return
	}
	fields := []zap.Field{zap.String("role", string(t.Role)), zap.String("preview", Preview(t.Content))}
	if t.Name != "" {
		fields = append(fields, zap.String("tool", t.Name))
	}
	log.Info("turn", fields...)
}

// Preview cuts s to 100 runes, marking the cut with an ellipsis.
func Preview(s string) string {
	r := []rune(s)
	if len(r) <= 100 {
		return s
	}
	return string(r[:100]) + "..."
}

// Unavailable returns a factory whose engines fail every run with cause.
func Unavailable(cause error) Factory {
	return func(string, tools.Set) Engine { return failing{cause: cause} }
}

type failing struct{ cause error }

func (f failing) Run(context.Context, string) iter.Seq2[Turn, error] {
	return func(yield func(Turn, error) bool) {
		yield(Turn{}, f.cause)
	}
}
