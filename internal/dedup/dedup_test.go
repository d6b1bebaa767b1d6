package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
)

func rawItem(source domain.Source, id string) domain.RawItem {
	return domain.RawItem{Source: source, ExternalID: id, Title: id}
}

func TestFilterNewThenMarkSeenIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := New(NewMemoryStore(0, 0))

	batch := []domain.RawItem{
		rawItem(domain.SourceGitHub, "octo/repo"),
		rawItem(domain.SourceHackerNews, "41234567"),
	}

	fresh, err := d.FilterNew(ctx, batch)
	if err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("expected all items fresh, got %d", len(fresh))
	}
	if err := d.MarkSeen(ctx, fresh); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	second, err := d.FilterNew(ctx, batch)
	if err != nil {
		t.Fatalf("second FilterNew: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("expected empty second result, got %d items", len(second))
	}
}

func TestFilterNewExcludesKnownIdentity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(0, 0)
	if err := store.Mark(ctx, []domain.Identity{{Source: domain.SourceGitHub, ExternalID: "octo/repo"}}, time.Now()); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	d := New(store)
	fresh, err := d.FilterNew(ctx, []domain.RawItem{
		rawItem(domain.SourceGitHub, "octo/repo"),
		rawItem(domain.SourceGitHub, "new/repo"),
	})
	if err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	if len(fresh) != 1 || fresh[0].ExternalID != "new/repo" {
		t.Fatalf("known identity leaked through: %v", fresh)
	}
}

func TestSameIDDifferentSourceIsDistinct(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := New(NewMemoryStore(0, 0))

	if err := d.MarkSeen(ctx, []domain.RawItem{rawItem(domain.SourceGitHub, "shared")}); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	fresh, err := d.FilterNew(ctx, []domain.RawItem{rawItem(domain.SourceHackerNews, "shared")})
	if err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	if len(fresh) != 1 {
		t.Fatal("identity must be keyed by (source, external_id), not external_id alone")
	}
}

func TestMemoryStoreRetention(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(time.Hour, 0)

	old := domain.Identity{Source: domain.SourceGitHub, ExternalID: "old/repo"}
	if err := store.Mark(ctx, []domain.Identity{old}, time.Now().Add(-2*time.Hour)); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	seen, err := store.Contains(ctx, []domain.Identity{old})
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if seen[old] {
		t.Fatal("entry past retention must be pruned")
	}
}

func TestMemoryStoreCapacityEvictsOldest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(0, 2)

	base := time.Now()
	oldest := domain.Identity{Source: domain.SourceGitHub, ExternalID: "a"}
	if err := store.Mark(ctx, []domain.Identity{oldest}, base.Add(-3*time.Minute)); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if err := store.Mark(ctx, []domain.Identity{{Source: domain.SourceGitHub, ExternalID: "b"}}, base.Add(-2*time.Minute)); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if err := store.Mark(ctx, []domain.Identity{{Source: domain.SourceGitHub, ExternalID: "c"}}, base); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	seen, err := store.Contains(ctx, []domain.Identity{oldest})
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if seen[oldest] {
		t.Fatal("oldest entry must be evicted past capacity")
	}
}
