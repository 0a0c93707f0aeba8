package history

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStoreRetention(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		turn := Turn{Role: RoleUser, Text: fmt.Sprintf("message %d", i), At: base.Add(time.Duration(i) * time.Second)}
		if err := store.Append(ctx, "user-1", turn); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	turns, err := store.Recent(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("Recent returned %d turns, want 3", len(turns))
	}
	// Oldest two evicted; remaining turns chronological.
	want := []string{"message 2", "message 3", "message 4"}
	for i, turn := range turns {
		if turn.Text != want[i] {
			t.Errorf("turn %d = %q, want %q", i, turn.Text, want[i])
		}
	}
}

func TestMemoryStoreRecentDepth(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)

	for i := 0; i < 4; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if err := store.Append(ctx, "user-1", Turn{Role: role, Text: fmt.Sprintf("m%d", i)}); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	turns, err := store.Recent(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("Recent returned %d turns, want 2", len(turns))
	}
	if turns[0].Text != "m2" || turns[1].Text != "m3" {
		t.Errorf("Recent returned %q, %q; want m2, m3", turns[0].Text, turns[1].Text)
	}
}

func TestMemoryStoreIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)

	if err := store.Append(ctx, "user-1", Turn{Role: RoleUser, Text: "hello"}); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	turns, err := store.Recent(ctx, "user-2", 10)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("Recent for other user returned %d turns, want 0", len(turns))
	}
}
