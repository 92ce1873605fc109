package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmforge-dev/dmforge/pkg/character"
)

// RedisBackend implements StorageBackend using Redis. Session records and
// characters are stored as JSON values; a per-owner set indexes characters
// for listing.
type RedisBackend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix for all game keys (default: "dmforge:").
	Prefix string
	// SessionTTL is the session expiry duration (0 = never expire).
	// Characters never expire; they outlive sessions.
	SessionTTL time.Duration
	// PoolSize is the connection pool size (default: 10).
	PoolSize int
}

// NewRedisBackend creates a new Redis storage backend and verifies the
// connection.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "dmforge:"
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisBackend{
		client: client,
		prefix: prefix,
		ttl:    cfg.SessionTTL,
	}, nil
}

// NewRedisBackendFromClient creates a Redis backend from an existing client.
// This is useful for testing with miniredis.
func NewRedisBackendFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = "dmforge:"
	}
	return &RedisBackend{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Key helpers
func (b *RedisBackend) sessionKey(sessionID string) string {
	return b.prefix + "session:" + sessionID
}

func (b *RedisBackend) characterKey(characterID string) string {
	return b.prefix + "character:" + characterID
}

func (b *RedisBackend) ownerIndexKey(owner string) string {
	return b.prefix + "owner:" + owner
}

func (b *RedisBackend) ownersKey() string {
	return b.prefix + "owners"
}

// characterRecord is the persisted shape of one character.
type characterRecord struct {
	ID        string               `json:"id"`
	Owner     string               `json:"owner"`
	Character *character.Character `json:"character"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (b *RedisBackend) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}
	return nil
}

// SaveSession creates or replaces a session record.
func (b *RedisBackend) SaveSession(ctx context.Context, rec *SessionRecord) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := b.client.Set(ctx, b.sessionKey(rec.ID), data, b.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

// LoadSession retrieves a session record by id.
func (b *RedisBackend) LoadSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	data, err := b.client.Get(ctx, b.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	return &rec, nil
}

// SaveCharacter persists a new character and returns its assigned id.
func (b *RedisBackend) SaveCharacter(ctx context.Context, c *character.Character, owner string) (string, error) {
	if err := b.checkOpen(); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	rec := characterRecord{
		ID:        uuid.New().String(),
		Owner:     owner,
		Character: c,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal character: %w", err)
	}

	pipe := b.client.Pipeline()
	pipe.Set(ctx, b.characterKey(rec.ID), data, 0)
	pipe.SAdd(ctx, b.ownerIndexKey(owner), rec.ID)
	pipe.SAdd(ctx, b.ownersKey(), owner)

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("save character: %w", err)
	}

	return rec.ID, nil
}

// UpdateCharacter replaces an existing character's state.
func (b *RedisBackend) UpdateCharacter(ctx context.Context, characterID string, c *character.Character) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	rec, err := b.loadCharacterRecord(ctx, characterID)
	if err != nil {
		return err
	}

	rec.Character = c
	rec.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal character: %w", err)
	}

	if err := b.client.Set(ctx, b.characterKey(characterID), data, 0).Err(); err != nil {
		return fmt.Errorf("update character: %w", err)
	}

	return nil
}

// LoadCharacter retrieves a character by id.
func (b *RedisBackend) LoadCharacter(ctx context.Context, characterID string) (*character.Character, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	rec, err := b.loadCharacterRecord(ctx, characterID)
	if err != nil {
		return nil, err
	}
	return rec.Character, nil
}

// ListCharacters returns summaries of a player's characters, or of every
// character when owner is empty.
func (b *RedisBackend) ListCharacters(ctx context.Context, owner string) ([]CharacterSummary, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	owners := []string{owner}
	if owner == "" {
		all, err := b.client.SMembers(ctx, b.ownersKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("list owners: %w", err)
		}
		owners = all
	}

	summaries := make([]CharacterSummary, 0)
	for _, o := range owners {
		ids, err := b.client.SMembers(ctx, b.ownerIndexKey(o)).Result()
		if err != nil {
			return nil, fmt.Errorf("list characters: %w", err)
		}
		// Redis sets are unordered; sort for deterministic listings.
		sort.Strings(ids)

		for _, id := range ids {
			rec, err := b.loadCharacterRecord(ctx, id)
			if err != nil {
				if errors.Is(err, ErrCharacterNotFound) {
					// Stale index entry; clean it up.
					b.client.SRem(ctx, b.ownerIndexKey(o), id)
					continue
				}
				return nil, err
			}
			summaries = append(summaries, CharacterSummary{
				ID:    rec.ID,
				Owner: rec.Owner,
				Name:  rec.Character.Name,
				Class: rec.Character.Class,
				Level: rec.Character.Level,
			})
		}
	}

	return summaries, nil
}

// Close releases resources held by the backend.
func (b *RedisBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	return b.client.Close()
}

// Ping checks if the Redis connection is alive.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) loadCharacterRecord(ctx context.Context, characterID string) (*characterRecord, error) {
	data, err := b.client.Get(ctx, b.characterKey(characterID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("get character: %w", err)
	}

	var rec characterRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal character: %w", err)
	}

	return &rec, nil
}
