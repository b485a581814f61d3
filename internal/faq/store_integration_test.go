package faq_test

import (
	"context"
	"errors"
	"testing"

	"github.com/askpath/askpath/internal/faq"
	"github.com/askpath/askpath/internal/log"
	"github.com/askpath/askpath/internal/testutil"
)

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store, err := faq.NewStore(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	first, err := store.Create(ctx, "What are your opening hours?", "We are open 9 to 5, Monday through Friday.", "general")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("duplicate question rejected", func(t *testing.T) {
		_, err := store.Create(ctx, "What are your opening hours?", "different answer", "")
		if !errors.Is(err, faq.ErrDuplicateQuestion) {
			t.Errorf("Create(duplicate) error = %v, want ErrDuplicateQuestion", err)
		}
	})

	t.Run("exact match ignores case and whitespace", func(t *testing.T) {
		m, err := store.Match(ctx, "  what are your OPENING hours?  ")
		if err != nil {
			t.Fatalf("Match() error = %v", err)
		}
		if !m.Matched {
			t.Fatal("Match() = miss, want exact hit")
		}
		if m.MatchType != faq.MatchExact {
			t.Errorf("Match() type = %q, want %q", m.MatchType, faq.MatchExact)
		}
		if m.FAQID != first.ID {
			t.Errorf("Match() faq id = %d, want %d", m.FAQID, first.ID)
		}
	})

	t.Run("partial match on substring", func(t *testing.T) {
		m, err := store.Match(ctx, "hi, could you tell me what are your opening hours? thanks")
		if err != nil {
			t.Fatalf("Match() error = %v", err)
		}
		if !m.Matched {
			t.Fatal("Match() = miss, want partial hit")
		}
		if m.MatchType != faq.MatchPartial {
			t.Errorf("Match() type = %q, want %q", m.MatchType, faq.MatchPartial)
		}
	})

	t.Run("partial tie goes to earliest entry", func(t *testing.T) {
		a, err := store.Create(ctx, "refund policy", "Refunds within 30 days.", "billing")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := store.Create(ctx, "refund policy details", "See the billing portal.", "billing"); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		m, err := store.Match(ctx, "where can I read the refund policy details please")
		if err != nil {
			t.Fatalf("Match() error = %v", err)
		}
		if !m.Matched {
			t.Fatal("Match() = miss, want hit")
		}
		if m.FAQID != a.ID {
			t.Errorf("Match() faq id = %d, want %d (lowest id wins ties)", m.FAQID, a.ID)
		}
	})

	t.Run("miss returns unmatched result", func(t *testing.T) {
		m, err := store.Match(ctx, "completely unrelated question")
		if err != nil {
			t.Fatalf("Match() error = %v", err)
		}
		if m.Matched {
			t.Errorf("Match() = hit, want miss; answer = %q", m.Answer)
		}
	})

	t.Run("category filter and listing", func(t *testing.T) {
		entries, err := store.Entries(ctx, "billing")
		if err != nil {
			t.Fatalf("Entries() error = %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("Entries(billing) = %d entries, want 2", len(entries))
		}

		cats, err := store.Categories(ctx)
		if err != nil {
			t.Fatalf("Categories() error = %v", err)
		}
		if len(cats) != 2 {
			t.Errorf("Categories() = %v, want [billing general]", cats)
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		updated, err := store.Update(ctx, first.ID, "What are your opening hours?", "We are open around the clock.", "general")
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if updated.Answer != "We are open around the clock." {
			t.Errorf("Update() answer = %q", updated.Answer)
		}

		if err := store.Delete(ctx, first.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := store.Entry(ctx, first.ID); !errors.Is(err, faq.ErrNotFound) {
			t.Errorf("Entry(deleted) error = %v, want ErrNotFound", err)
		}
		if err := store.Delete(ctx, first.ID); !errors.Is(err, faq.ErrNotFound) {
			t.Errorf("Delete(deleted) error = %v, want ErrNotFound", err)
		}
	})
}
