// Package cache provides a redis-backed embedding cache that decorates any
// embeddings.Embedder.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidhonghikim/griot-sub000/pkg/embeddings"
)

const (
	// DefaultPrefix namespaces cache keys.
	DefaultPrefix = "griot:emb:"

	// DefaultTTL is how long an embedding stays cached.
	DefaultTTL = 7 * 24 * time.Hour
)

// Config holds configuration for the cache.
type Config struct {
	// Addr is the redis address (host:port). Ignored when Client is set.
	Addr string

	// Client overrides the redis client.
	Client *redis.Client

	Prefix string
	TTL    time.Duration

	// Model is folded into the key so switching models never serves stale
	// vectors. Derived from the wrapped embedder when it implements Named.
	Model string
}

// Embedder caches vectors from the wrapped embedder in redis. Redis errors
// are logged and treated as misses.
type Embedder struct {
	next   embeddings.Embedder
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	model  string
	logger *slog.Logger
}

type cachedEmbedding struct {
	Vector    []float32 `json:"vector"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// New wraps next with a redis cache.
func New(next embeddings.Embedder, c Config, logger *slog.Logger) (*Embedder, error) {
	if next == nil {
		return nil, errors.New("wrapped embedder is required")
	}

	rdb := c.Client
	if rdb == nil {
		if c.Addr == "" {
			return nil, errors.New("redis address is required")
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:        c.Addr,
			DialTimeout: 2 * time.Second,
			ReadTimeout: 2 * time.Second,
		})
	}

	prefix := c.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	model := c.Model
	if n, ok := next.(embeddings.Named); ok && model == "" {
		model = n.ProviderName() + "/" + n.ModelName()
	}

	return &Embedder{
		next:   next,
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		model:  model,
		logger: logger,
	}, nil
}

// Embed returns the cached vector for text or computes and stores it.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)

	if vec, ok := e.get(ctx, key); ok {
		return vec, nil
	}

	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.set(ctx, key, vec)
	return vec, nil
}

// EmbedMany serves hits from the cache and embeds only the misses.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missIdx   []int
		missTexts []string
	)
	for i, t := range texts {
		if vec, ok := e.get(ctx, e.key(t)); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	var (
		vecs [][]float32
		err  error
	)
	if be, ok := e.next.(embeddings.BatchEmbedder); ok {
		vecs, err = be.EmbedMany(ctx, missTexts)
	} else {
		vecs = make([][]float32, 0, len(missTexts))
		for _, t := range missTexts {
			var v []float32
			if v, err = e.next.Embed(ctx, t); err != nil {
				break
			}
			vecs = append(vecs, v)
		}
	}
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missTexts), len(vecs))
	}

	for j, i := range missIdx {
		out[i] = vecs[j]
		e.set(ctx, e.key(missTexts[j]), vecs[j])
	}
	return out, nil
}

// ProviderName implements embeddings.Named.
func (e *Embedder) ProviderName() string {
	if n, ok := e.next.(embeddings.Named); ok {
		return n.ProviderName()
	}
	return "cached"
}

// ModelName implements embeddings.Named.
func (e *Embedder) ModelName() string {
	if n, ok := e.next.(embeddings.Named); ok {
		return n.ModelName()
	}
	return e.model
}

// Close closes the redis client and the wrapped embedder.
func (e *Embedder) Close() error {
	return errors.Join(e.rdb.Close(), e.next.Close())
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(e.model + "\x00" + text))
	return e.prefix + hex.EncodeToString(sum[:])
}

func (e *Embedder) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := e.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			e.logger.Debug("embedding cache read failed", "error", err)
		}
		return nil, false
	}

	var cached cachedEmbedding
	if err := json.Unmarshal(data, &cached); err != nil || len(cached.Vector) == 0 {
		return nil, false
	}
	return cached.Vector, true
}

func (e *Embedder) set(ctx context.Context, key string, vec []float32) {
	data, err := json.Marshal(cachedEmbedding{Vector: vec, Model: e.model, CreatedAt: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := e.rdb.Set(ctx, key, data, e.ttl).Err(); err != nil {
		e.logger.Debug("embedding cache write failed", "error", err)
	}
}

var _ embeddings.BatchEmbedder = (*Embedder)(nil)
