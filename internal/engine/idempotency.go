package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenSource issues idempotency tokens. A token is stable for its
// session so that every retry of a create-type call carries the same
// value and the provider can collapse duplicates.
type TokenSource interface {
	Token(ctx context.Context, sessionID string) (string, error)
}

// RedisTokens keeps issued tokens in redis, so a restarted process
// resuming a session reuses the token its predecessor sent.
type RedisTokens struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTokens connects to redis at url and verifies the connection.
func NewRedisTokens(url string, ttl time.Duration) (*RedisTokens, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("idempotency tokens: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("idempotency tokens: connect: %w", err)
	}
	return &RedisTokens{client: client, ttl: ttl}, nil
}

// NewRedisTokensFromClient wraps an existing client (used by tests).
func NewRedisTokensFromClient(client *redis.Client, ttl time.Duration) *RedisTokens {
	return &RedisTokens{client: client, ttl: ttl}
}

func (r *RedisTokens) Token(ctx context.Context, sessionID string) (string, error) {
	key := "cloudwright:token:" + sessionID
	token := uuid.NewString()

	// SET NX wins the race; losers read the winner's token.
	set, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("idempotency token for %s: %w", sessionID, err)
	}
	if set {
		return token, nil
	}
	existing, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		// Expired between SetNX and Get.
		return token, nil
	}
	if err != nil {
		return "", fmt.Errorf("idempotency token for %s: %w", sessionID, err)
	}
	return existing, nil
}

func (r *RedisTokens) Close() error {
	return r.client.Close()
}

// LocalTokens issues process-local tokens. Stable within one process
// run, which covers every retry the engine itself performs.
type LocalTokens struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewLocalTokens() *LocalTokens {
	return &LocalTokens{tokens: make(map[string]string)}
}

func (l *LocalTokens) Token(_ context.Context, sessionID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if token, ok := l.tokens[sessionID]; ok {
		return token, nil
	}
	token := uuid.NewString()
	l.tokens[sessionID] = token
	return token, nil
}
