package engineinfra

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/errx"
	"github.com/go-redis/redis/v8"
)

// RedisWorkflowCache cachea la definición activa por (tenant, key). Las
// conversaciones leen el workflow en cada turno; sin cache cada mensaje
// sería un hit a Postgres por un documento que casi nunca cambia.
type RedisWorkflowCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ engine.WorkflowCache = (*RedisWorkflowCache)(nil)

func NewRedisWorkflowCache(client *redis.Client, ttl time.Duration) *RedisWorkflowCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisWorkflowCache{client: client, ttl: ttl}
}

func cacheKey(tenantID kernel.TenantID, key string) string {
	return fmt.Sprintf("workflow:active:%s:%s", tenantID.String(), key)
}

// Get retorna la definición cacheada o ErrWorkflowNotFound en cache miss
func (c *RedisWorkflowCache) Get(ctx context.Context, tenantID kernel.TenantID, key string) (*engine.WorkflowDefinition, error) {
	raw, err := c.client.Get(ctx, cacheKey(tenantID, key)).Bytes()
	if err == redis.Nil {
		return nil, engine.ErrWorkflowNotFound().
			WithDetail("key", key).
			WithDetail("source", "cache")
	}
	if err != nil {
		return nil, errx.Wrap(err, "failed to read workflow cache", errx.TypeInternal)
	}

	var wf engine.WorkflowDefinition
	if err := json.Unmarshal(raw, &wf); err != nil {
		// Entrada corrupta: se borra y se trata como miss
		log.Printf("⚠️ Corrupted workflow cache entry for %s, evicting", key)
		c.client.Del(ctx, cacheKey(tenantID, key))
		return nil, engine.ErrWorkflowNotFound().WithDetail("key", key)
	}

	return &wf, nil
}

// Set cachea la definición con el TTL configurado
func (c *RedisWorkflowCache) Set(ctx context.Context, wf *engine.WorkflowDefinition) error {
	raw, err := json.Marshal(wf)
	if err != nil {
		return errx.Wrap(err, "failed to marshal workflow for cache", errx.TypeInternal)
	}

	if err := c.client.Set(ctx, cacheKey(wf.TenantID, wf.Key), raw, c.ttl).Err(); err != nil {
		return errx.Wrap(err, "failed to write workflow cache", errx.TypeInternal)
	}
	return nil
}

// Invalidate borra la entrada; se llama al publicar una versión nueva
func (c *RedisWorkflowCache) Invalidate(ctx context.Context, tenantID kernel.TenantID, key string) error {
	if err := c.client.Del(ctx, cacheKey(tenantID, key)).Err(); err != nil {
		return errx.Wrap(err, "failed to invalidate workflow cache", errx.TypeInternal)
	}
	log.Printf("🧹 Invalidated workflow cache for tenant=%s key=%s", tenantID, key)
	return nil
}
