// Package store persists agents and their knowledge records.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/researcher/internal/knowledge"
)

var (
	// ErrNotFound is returned when no agent has the requested id.
	ErrNotFound = errors.New("agent not found")
	// ErrConflict is returned when an append was prepared against a stale revision.
	ErrConflict = errors.New("agent was modified concurrently")
)

// InvalidAgentIDMessage is the message carried by ErrInvalidIdentifier.
const InvalidAgentIDMessage = "Invalid agent ID format"

// ErrInvalidIdentifier is returned before any lookup when an id is malformed.
type ErrInvalidIdentifier struct {
	ID string
}

func (e *ErrInvalidIdentifier) Error() string {
	return fmt.Sprintf("%s: %q", InvalidAgentIDMessage, e.ID)
}

// Agent is a research agent with its knowledge and query log.
type Agent struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Files     []knowledge.Record `json:"files"`
	Websites  []knowledge.Record `json:"websites"`
	Messages  []string           `json:"messages"`
	Revision  int64              `json:"revision"`
	CreatedAt time.Time          `json:"created_at"`
}

// TotalTokens sums the tokens of every file and website record.
func (a Agent) TotalTokens() int {
	return knowledge.TotalTokens(a.Files, a.Websites)
}

// HasKnowledge reports whether the agent holds any record.
func (a Agent) HasKnowledge() bool {
	return len(a.Files) > 0 || len(a.Websites) > 0
}

// Store is the persistence contract shared by every driver.
//
// Appends carry the revision the caller read; drivers reject the append with
// ErrConflict when the agent's knowledge changed in between, and bump the
// revision on success. Message appends never touch the revision.
type Store interface {
	Create(ctx context.Context, name string, files []knowledge.Record) (Agent, error)
	Get(ctx context.Context, id string) (Agent, error)
	Delete(ctx context.Context, id string) error
	AppendFiles(ctx context.Context, id string, records []knowledge.Record, expectedRevision int64) error
	AppendWebsites(ctx context.Context, id string, records []knowledge.Record, expectedRevision int64) error
	AppendMessage(ctx context.Context, id string, text string) error
	Close() error
}

// ValidateID checks that id is a UUID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &ErrInvalidIdentifier{ID: id}
	}
	return nil
}

func newAgent(name string, files []knowledge.Record) Agent {
	return Agent{
		ID:        uuid.NewString(),
		Name:      name,
		Files:     append([]knowledge.Record(nil), files...),
		Websites:  []knowledge.Record{},
		Messages:  []string{},
		Revision:  1,
		CreatedAt: time.Now().UTC(),
	}
}

func (a Agent) clone() Agent {
	a.Files = append([]knowledge.Record{}, a.Files...)
	a.Websites = append([]knowledge.Record{}, a.Websites...)
	a.Messages = append([]string{}, a.Messages...)
	return a
}
