package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
)

var testKey = domain.SessionKey{AppName: "app", UserID: "u1", SessionID: "s1"}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_GetOrCreate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, testKey)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if sess.Key != testKey {
		t.Errorf("key = %v, want %v", sess.Key, testKey)
	}
	if len(sess.Turns) != 0 || sess.State.Len() != 0 {
		t.Error("new session not empty")
	}

	if _, err := store.GetOrCreate(ctx, testKey); err != nil {
		t.Fatalf("GetOrCreate() second call error = %v", err)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), testKey)
	if !errors.Is(err, ports.ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}
}

func TestStore_AppendTurn_Order(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetOrCreate(ctx, testKey); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	turns := []domain.Turn{
		{Role: domain.RoleUser, Text: "first", CreatedAt: now},
		{Role: domain.RoleAgent, Text: "second", Stage: "initial", CreatedAt: now},
		{Role: domain.RoleTool, Text: "third", Stage: "refiner", CreatedAt: now},
	}
	for _, turn := range turns {
		if err := store.AppendTurn(ctx, testKey, turn); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	sess, err := store.Get(ctx, testKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.Turns) != 3 {
		t.Fatalf("turns = %d, want 3", len(sess.Turns))
	}
	for i, turn := range turns {
		got := sess.Turns[i]
		if got.Text != turn.Text || got.Role != turn.Role || got.Stage != turn.Stage {
			t.Errorf("turns[%d] = %+v, want %+v", i, got, turn)
		}
	}
}

func TestStore_AppendTurn_MissingSession(t *testing.T) {
	store := newTestStore(t)
	err := store.AppendTurn(context.Background(), testKey, domain.Turn{Role: domain.RoleUser, Text: "x", CreatedAt: time.Now()})
	if !errors.Is(err, ports.ErrSessionNotFound) {
		t.Errorf("AppendTurn() error = %v, want ErrSessionNotFound", err)
	}
}

func TestStore_SaveState_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetOrCreate(ctx, testKey); err != nil {
		t.Fatal(err)
	}

	bag := domain.NewStateBag()
	bag.Set("z_first", "1")
	bag.Set("a_second", "2")
	if err := store.SaveState(ctx, testKey, bag); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	sess, err := store.Get(ctx, testKey)
	if err != nil {
		t.Fatal(err)
	}

	// Write order preserved across the round trip.
	keys := sess.State.Keys()
	if len(keys) != 2 || keys[0] != "z_first" || keys[1] != "a_second" {
		t.Errorf("restored keys = %v, want [z_first a_second]", keys)
	}

	// Overwrite on re-save.
	bag.Set("z_first", "updated")
	if err := store.SaveState(ctx, testKey, bag); err != nil {
		t.Fatal(err)
	}
	sess, _ = store.Get(ctx, testKey)
	if v, _ := sess.State.Get("z_first"); v != "updated" {
		t.Errorf("z_first = %q, want updated", v)
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.db")
	ctx := context.Background()

	store, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetOrCreate(ctx, testKey); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendTurn(ctx, testKey, domain.Turn{Role: domain.RoleUser, Text: "persisted", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	bag := domain.NewStateBag()
	bag.Set("architecture_design", "v1")
	if err := store.SaveState(ctx, testKey, bag); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	sess, err := reopened.Get(ctx, testKey)
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if len(sess.Turns) != 1 || sess.Turns[0].Text != "persisted" {
		t.Errorf("turns after reopen = %+v", sess.Turns)
	}
	if v, _ := sess.State.Get("architecture_design"); v != "v1" {
		t.Errorf("state after reopen = %q, want v1", v)
	}
}

func TestStore_IsolationAcrossKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	other := domain.SessionKey{AppName: "app", UserID: "u2", SessionID: "s1"}
	store.GetOrCreate(ctx, testKey)
	store.GetOrCreate(ctx, other)

	store.AppendTurn(ctx, testKey, domain.Turn{Role: domain.RoleUser, Text: "for u1", CreatedAt: time.Now()})

	sess, err := store.Get(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.Turns) != 0 {
		t.Error("turn appended to one identity visible in another")
	}
}
