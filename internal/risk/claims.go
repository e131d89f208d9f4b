package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Claims guarantees at most one in-flight proposal per symbol. release must be
// called once the proposal has been handed off or abandoned.
type Claims interface {
	Claim(ctx context.Context, symbol string) (release func(), ok bool, err error)
}

type MemoryClaims struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryClaims() *MemoryClaims {
	return &MemoryClaims{held: make(map[string]struct{})}
}

func (m *MemoryClaims) Claim(_ context.Context, symbol string) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.held[symbol]; busy {
		return func() {}, false, nil
	}
	m.held[symbol] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, symbol)
			m.mu.Unlock()
		})
	}, true, nil
}

// releaseScript deletes the claim only if it still carries our token, so an
// expired claim taken over by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClaims shares claims between processes with SET NX PX.
type RedisClaims struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisClaimsConfig struct {
	Addr     string        `yaml:"addr" default:"localhost:6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix" default:"signalbook:claim"`
	TTL      time.Duration `yaml:"ttl" default:"30s"`
}

// NewRedisClaims connects and pings the server.
func NewRedisClaims(ctx context.Context, cfg RedisClaimsConfig) (*RedisClaims, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newRedisClaims(client, cfg), nil
}

func newRedisClaims(client *redis.Client, cfg RedisClaimsConfig) *RedisClaims {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisClaims{client: client, prefix: cfg.Prefix, ttl: ttl}
}

func (r *RedisClaims) Claim(ctx context.Context, symbol string) (func(), bool, error) {
	key := r.key(symbol)
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return func() {}, false, fmt.Errorf("claim %s: %w", symbol, err)
	}
	if !ok {
		return func() {}, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				logger.Warn("Failed to release symbol claim", "symbol", symbol, "error", err)
			}
		})
	}, true, nil
}

func (r *RedisClaims) Close() error {
	return r.client.Close()
}

func (r *RedisClaims) key(symbol string) string {
	if r.prefix == "" {
		return symbol
	}
	return fmt.Sprintf("%s:%s", r.prefix, symbol)
}
