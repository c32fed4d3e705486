package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/researcher/internal/knowledge"
)

func TestValidateID(t *testing.T) {
	if err := ValidateID(uuid.NewString()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, bad := range []string{"", "123", "not-a-uuid", "66a1b2c3d4e5f60718293a4b"} {
		var invalid *ErrInvalidIdentifier
		if err := ValidateID(bad); !errors.As(err, &invalid) {
			t.Fatalf("ValidateID(%q) = %v, want ErrInvalidIdentifier", bad, err)
		}
	}
}

func TestAgentHelpers(t *testing.T) {
	a := Agent{}
	if a.HasKnowledge() || a.TotalTokens() != 0 {
		t.Fatalf("empty agent should have no knowledge")
	}
	a.Files = []knowledge.Record{{Name: "a.pdf", Tokens: 10}}
	a.Websites = []knowledge.Record{{Name: "https://x", Tokens: 5}}
	if !a.HasKnowledge() || a.TotalTokens() != 15 {
		t.Fatalf("unexpected helpers: %v %d", a.HasKnowledge(), a.TotalTokens())
	}
}

func TestMemoryContract(t *testing.T) {
	testStoreContract(t, NewMemory())
}

// testStoreContract exercises the behaviour every driver must share.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	a, err := s.Create(ctx, "Scout", []knowledge.Record{{Name: "seed.pdf", Text: "seed", Tokens: 3}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == "" || a.Name != "Scout" || a.Revision != 1 {
		t.Fatalf("unexpected agent %#v", a)
	}

	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Files) != 1 || got.Files[0].Name != "seed.pdf" || got.TotalTokens() != 3 {
		t.Fatalf("unexpected stored agent %#v", got)
	}

	files := []knowledge.Record{{Name: "b.docx", Text: "b", Tokens: 4}, {Name: "c.xlsx", Text: "c", Tokens: 5}}
	if err := s.AppendFiles(ctx, a.ID, files, got.Revision); err != nil {
		t.Fatalf("AppendFiles: %v", err)
	}
	if err := s.AppendFiles(ctx, a.ID, files, got.Revision); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale revision should conflict, got %v", err)
	}

	got, err = s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	sites := []knowledge.Record{{Name: "https://a.example", Text: "site", Tokens: 7}}
	if err := s.AppendWebsites(ctx, a.ID, sites, got.Revision); err != nil {
		t.Fatalf("AppendWebsites: %v", err)
	}
	if err := s.AppendMessage(ctx, a.ID, "first question"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := s.AppendMessage(ctx, a.ID, "second question"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	got, err = s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	names := []string{}
	for _, r := range got.Files {
		names = append(names, r.Name)
	}
	if len(names) != 3 || names[0] != "seed.pdf" || names[1] != "b.docx" || names[2] != "c.xlsx" {
		t.Fatalf("file order not preserved: %v", names)
	}
	if len(got.Websites) != 1 || got.Websites[0].Tokens != 7 {
		t.Fatalf("unexpected websites %#v", got.Websites)
	}
	if len(got.Messages) != 2 || got.Messages[0] != "first question" {
		t.Fatalf("unexpected messages %#v", got.Messages)
	}
	if got.TotalTokens() != 3+4+5+7 {
		t.Fatalf("unexpected total %d", got.TotalTokens())
	}
	if got.Revision != 3 {
		t.Fatalf("expected revision 3 after two knowledge commits, got %d", got.Revision)
	}

	// a message logged between read and commit must not invalidate the commit
	before := got.Revision
	if err := s.AppendMessage(ctx, a.ID, "third question"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	late := []knowledge.Record{{Name: "d.pdf", Text: "d", Tokens: 1}}
	if err := s.AppendFiles(ctx, a.ID, late, before); err != nil {
		t.Fatalf("AppendFiles after AppendMessage: %v", err)
	}

	missing := uuid.NewString()
	if _, err := s.Get(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.AppendFiles(ctx, missing, files, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on append, got %v", err)
	}
	if err := s.AppendMessage(ctx, missing, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on message, got %v", err)
	}
	var invalid *ErrInvalidIdentifier
	if _, err := s.Get(ctx, "bogus"); !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("deleting a missing agent should succeed, got %v", err)
	}
	if _, err := s.Get(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted agent should be gone, got %v", err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a, err := m.Create(ctx, "copy", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, _ := m.Get(ctx, a.ID)
	got.Messages = append(got.Messages, "mutated")
	again, _ := m.Get(ctx, a.ID)
	if len(again.Messages) != 0 {
		t.Fatalf("callers must not alias stored state")
	}
}
