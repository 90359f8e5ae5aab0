package recommender

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"instrument-advisor-be/pkg/store"
)

// SchemaCache keeps requirement schemas in Redis. Schemas change when
// the backend's catalog is retrained, so a modest TTL is enough.
type SchemaCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewSchemaCache builds a cache on top of an existing Redis client.
func NewSchemaCache(rdb *redis.Client, ttl time.Duration) *SchemaCache {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &SchemaCache{rdb: rdb, ttl: ttl, logger: log.Default()}
}

func schemaKey(productType string) string {
	return "schema:" + strings.ToLower(strings.TrimSpace(productType))
}

// Get returns the cached schema for a product type, if present.
// Cache errors are treated as misses.
func (s *SchemaCache) Get(ctx context.Context, productType string) (*store.RequirementSchema, bool) {
	data, err := s.rdb.Get(ctx, schemaKey(productType)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Printf("[schema-cache] get failed: %v", err)
		}
		return nil, false
	}
	var schema store.RequirementSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		s.logger.Printf("[schema-cache] corrupt entry for %s: %v", productType, err)
		return nil, false
	}
	return &schema, true
}

// Set stores a schema. Failures are logged, never propagated.
func (s *SchemaCache) Set(ctx context.Context, productType string, schema *store.RequirementSchema) {
	data, err := json.Marshal(schema)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, schemaKey(productType), data, s.ttl).Err(); err != nil {
		s.logger.Printf("[schema-cache] set failed: %v", err)
	}
}
