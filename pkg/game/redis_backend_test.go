package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/dmforge-dev/dmforge/pkg/character"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisBackend) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	backend := NewRedisBackendFromClient(client, "test:", 0)

	t.Cleanup(func() {
		_ = backend.Close()
	})

	return mr, backend
}

func TestRedisBackend_SaveAndLoadSession(t *testing.T) {
	_, backend := setupMiniredis(t)
	ctx := context.Background()

	rec := sampleRecord("sess-123")
	if err := backend.SaveSession(ctx, rec); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	loaded, err := backend.LoadSession(ctx, "sess-123")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}

	if loaded.ID != rec.ID {
		t.Errorf("ID = %s, want %s", loaded.ID, rec.ID)
	}
	if loaded.TurnIndex != rec.TurnIndex {
		t.Errorf("TurnIndex = %d, want %d", loaded.TurnIndex, rec.TurnIndex)
	}
	if len(loaded.Log) != 2 || loaded.Log[0].Payload["message"] != "hello" {
		t.Errorf("Log = %+v", loaded.Log)
	}
}

func TestRedisBackend_LoadSession_NotFound(t *testing.T) {
	_, backend := setupMiniredis(t)

	_, err := backend.LoadSession(context.Background(), "nonexistent")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRedisBackend_SessionTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := NewRedisBackendFromClient(client, "test:", time.Minute)
	t.Cleanup(func() { _ = backend.Close() })

	ctx := context.Background()
	if err := backend.SaveSession(ctx, sampleRecord("sess-ttl")); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	_, err := backend.LoadSession(ctx, "sess-ttl")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected expired session to be gone, got %v", err)
	}
}

func TestRedisBackend_CharacterLifecycle(t *testing.T) {
	_, backend := setupMiniredis(t)
	ctx := context.Background()

	c := character.New("Thorin", "fighter", character.DefaultAttributes(), "")

	id, err := backend.SaveCharacter(ctx, c, "Alice")
	if err != nil {
		t.Fatalf("SaveCharacter failed: %v", err)
	}

	loaded, err := backend.LoadCharacter(ctx, id)
	if err != nil {
		t.Fatalf("LoadCharacter failed: %v", err)
	}
	if loaded.Name != "Thorin" {
		t.Errorf("Name = %s, want Thorin", loaded.Name)
	}

	loaded.GrantExperience(50)
	if err := backend.UpdateCharacter(ctx, id, loaded); err != nil {
		t.Fatalf("UpdateCharacter failed: %v", err)
	}

	again, err := backend.LoadCharacter(ctx, id)
	if err != nil {
		t.Fatalf("LoadCharacter after update failed: %v", err)
	}
	if again.Experience != 50 {
		t.Errorf("Experience = %d, want 50", again.Experience)
	}
}

func TestRedisBackend_LoadCharacter_NotFound(t *testing.T) {
	_, backend := setupMiniredis(t)

	_, err := backend.LoadCharacter(context.Background(), "nonexistent")
	if !errors.Is(err, ErrCharacterNotFound) {
		t.Errorf("expected ErrCharacterNotFound, got %v", err)
	}
}

func TestRedisBackend_ListCharacters(t *testing.T) {
	_, backend := setupMiniredis(t)
	ctx := context.Background()

	if _, err := backend.SaveCharacter(ctx, character.New("Thorin", "fighter", character.DefaultAttributes(), ""), "Alice"); err != nil {
		t.Fatalf("SaveCharacter failed: %v", err)
	}
	if _, err := backend.SaveCharacter(ctx, character.New("Grim", "rogue", character.DefaultAttributes(), ""), "Bob"); err != nil {
		t.Fatalf("SaveCharacter failed: %v", err)
	}

	alices, err := backend.ListCharacters(ctx, "Alice")
	if err != nil {
		t.Fatalf("ListCharacters failed: %v", err)
	}
	if len(alices) != 1 || alices[0].Name != "Thorin" {
		t.Errorf("alices = %+v, want one entry for Thorin", alices)
	}

	all, err := backend.ListCharacters(ctx, "")
	if err != nil {
		t.Fatalf("ListCharacters failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("total %d characters, want 2", len(all))
	}
}

func TestRedisBackend_ListCharacters_StaleIndex(t *testing.T) {
	mr, backend := setupMiniredis(t)
	ctx := context.Background()

	id, err := backend.SaveCharacter(ctx, character.New("Thorin", "fighter", character.DefaultAttributes(), ""), "Alice")
	if err != nil {
		t.Fatalf("SaveCharacter failed: %v", err)
	}

	// Drop the character value but leave the index entry behind.
	mr.Del("test:character:" + id)

	summaries, err := backend.ListCharacters(ctx, "Alice")
	if err != nil {
		t.Fatalf("ListCharacters failed: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("expected stale entry skipped, got %+v", summaries)
	}

	// The stale id was removed from the index.
	ids, err := mr.SMembers("test:owner:Alice")
	if err == nil && len(ids) != 0 {
		t.Errorf("stale id still indexed: %v", ids)
	}
}

func TestRedisBackend_Closed(t *testing.T) {
	_, backend := setupMiniredis(t)
	ctx := context.Background()

	if err := backend.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Closing twice is fine.
	if err := backend.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if err := backend.SaveSession(ctx, sampleRecord("sess-1")); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("SaveSession after close: %v, want ErrStorageClosed", err)
	}
	if err := backend.Ping(ctx); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("Ping after close: %v, want ErrStorageClosed", err)
	}
}

func TestRedisBackend_ManagerIntegration(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := NewRedisBackendFromClient(client, "test:", 0)

	narrator := &scriptedNarrator{}
	mgr := NewManager(backend, narrator)
	t.Cleanup(func() { _ = mgr.Close() })

	ctx := context.Background()
	state, err := mgr.CreateSession(ctx, []string{"Alice"})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	narrator.queue(&TurnResult{Narration: "The gate creaks open."})
	next, err := mgr.SubmitAction(ctx, state.ID, "1", "I push the gate")
	if err != nil {
		t.Fatalf("SubmitAction failed: %v", err)
	}
	if len(next.Log) != 2 {
		t.Errorf("expected 2 events, got %d", len(next.Log))
	}

	// The persisted record is readable directly from the backend.
	rec, err := backend.LoadSession(ctx, state.ID)
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if rec.TurnIndex != 0 || len(rec.Log) != 2 {
		t.Errorf("persisted record = %+v", rec)
	}
}
