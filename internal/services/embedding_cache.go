package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pkgerrors "github.com/TalWayn72/EduSphere-sub001/internal/pkg/errors"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/embedder"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/envutil"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

const embeddingKeyPrefix = "emb:"

// EmbeddingProvider is the upstream the cache wraps; *embedder.Client
// satisfies it, including the nil "not configured" client.
type EmbeddingProvider interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Available() bool
}

var _ EmbeddingProvider = (*embedder.Client)(nil)

// CacheStore is the key/value backend the cache needs: get, set-with-ttl,
// keys-by-prefix, delete-many. Entries are immutable once written, so two
// concurrent misses for the same text cost at most one redundant provider
// call and one redundant write.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetTTL(ctx context.Context, key, val string, ttl time.Duration) error
	KeysByPrefix(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, keys []string) error
}

// EmbeddingCacheService content-addresses provider calls: within one TTL
// window the provider is called at most once per distinct text, across both
// the single and batch entry points. With no cache store configured every
// call passes straight through, which is a supported mode.
type EmbeddingCacheService struct {
	log      *logger.Logger
	store    CacheStore
	provider EmbeddingProvider
	ttl      time.Duration
}

func NewEmbeddingCacheService(log *logger.Logger, store CacheStore, provider EmbeddingProvider) *EmbeddingCacheService {
	ttl := time.Duration(envutil.Int("EMBEDDING_CACHE_TTL_SECONDS", 86400)) * time.Second
	return &EmbeddingCacheService{
		log:      log.With("service", "EmbeddingCache"),
		store:    store,
		provider: provider,
		ttl:      ttl,
	}
}

func (s *EmbeddingCacheService) HasProvider() bool {
	return s != nil && s.provider != nil && s.provider.Available()
}

// EmbedQuery embeds a single text, serving repeats from the cache.
func (s *EmbeddingCacheService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding cache: expected 1 vector, got %d", len(vecs))
	}
	return vecs[0], nil
}

// EmbedDocuments embeds a batch, sending only cache misses upstream in a
// single provider call and merging results back into input order.
func (s *EmbeddingCacheService) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if !s.HasProvider() {
		return nil, pkgerrors.ErrProviderUnavailable
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	missTexts := make([]string, 0, len(texts))
	// Duplicate inputs inside one batch share a single upstream slot.
	pending := map[string][]int{}

	for i, text := range texts {
		key := cacheKey(text)
		if s.store != nil {
			if raw, ok, err := s.store.Get(ctx, key); err == nil && ok {
				if vec := decodeVector(raw); vec != nil {
					out[i] = vec
					continue
				}
			} else if err != nil {
				s.log.Warn("embedding cache read failed", "error", err)
			}
		}
		if slots, seen := pending[key]; seen {
			pending[key] = append(slots, i)
			continue
		}
		pending[key] = []int{i}
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := s.provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrProviderUnavailable, err)
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedding cache: provider returned %d vectors for %d inputs", len(vecs), len(missTexts))
	}

	for j, vec := range vecs {
		key := cacheKey(missTexts[j])
		for _, slot := range pending[key] {
			out[slot] = vec
		}
		if s.store != nil {
			if err := s.store.SetTTL(ctx, key, encodeVector(vec), s.ttl); err != nil {
				s.log.Warn("embedding cache write failed", "error", err)
			}
		}
	}
	return out, nil
}

// ClearCache deletes every key under the embedding namespace; a no-op when
// no cache backend is configured.
func (s *EmbeddingCacheService) ClearCache(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	keys, err := s.store.KeysByPrefix(ctx, embeddingKeyPrefix)
	if err != nil {
		return fmt.Errorf("embedding cache: list keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.store.Delete(ctx, keys); err != nil {
		return fmt.Errorf("embedding cache: delete keys: %w", err)
	}
	s.log.Info("embedding cache cleared", "keys", len(keys))
	return nil
}

// The key is a cryptographic hash of the exact input text, not a reversible
// encoding; identical text always maps to the same key.
func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return embeddingKeyPrefix + hex.EncodeToString(sum[:])
}

func encodeVector(vec []float32) string {
	raw, _ := json.Marshal(vec)
	return string(raw)
}

func decodeVector(raw string) []float32 {
	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil || len(vec) == 0 {
		return nil
	}
	return vec
}

// ---- Redis-backed CacheStore ----

type redisStore struct {
	rdb *goredis.Client
}

// NewRedisStoreFromEnv returns (nil, nil) when REDIS_ADDR is unset; the
// cache then runs in pass-through mode.
func NewRedisStoreFromEnv(log *logger.Logger) (CacheStore, error) {
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    envutil.String("REDIS_PASSWORD", ""),
		DB:          envutil.Int("REDIS_DB", 0),
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("redis embedding cache connected", "addr", addr)
	return &redisStore{rdb: rdb}, nil
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *redisStore) SetTTL(ctx context.Context, key, val string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, val, ttl).Err()
}

func (s *redisStore) KeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, prefix+"*", 500).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (s *redisStore) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}
