package convstate

import (
	"context"
	"log"
	"time"

	"github.com/Abraxas-365/converso/engine"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`

// RedisLocker exclusión por hilo entre procesos usando SetNX con TTL. El
// TTL cubre el caso de un proceso caído con el lock tomado; la liberación
// verifica el dueño antes de borrar.
type RedisLocker struct {
	client       *redis.Client
	pollInterval time.Duration
	waitTimeout  time.Duration
}

var _ engine.ConversationLocker = (*RedisLocker)(nil)

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client:       client,
		pollInterval: 100 * time.Millisecond,
		waitTimeout:  30 * time.Second,
	}
}

// WithLock espera el lock del hilo (un segundo mensaje del mismo usuario
// queda encolado, no intercalado) y ejecuta fn con él tomado.
func (l *RedisLocker) WithLock(
	ctx context.Context,
	threadKey string,
	ttl time.Duration,
	fn func(ctx context.Context) error,
) error {
	key := "converso:lock:" + threadKey
	ctxKey := lockContextKey(key)

	if ctx.Value(ctxKey) != nil {
		return fn(ctx)
	}

	value := uuid.New().String()
	deadline := time.Now().Add(l.waitTimeout)

	for {
		acquired, err := l.client.SetNX(ctx, key, value, ttl).Result()
		if err != nil {
			return engine.ErrConversationLocked().
				WithDetail("thread", threadKey).
				WithDetail("reason", err.Error())
		}
		if acquired {
			break
		}
		if time.Now().After(deadline) {
			return engine.ErrConversationLocked().
				WithDetail("thread", threadKey).
				WithDetail("reason", "wait timeout")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}

	defer l.release(key, value)
	return fn(context.WithValue(ctx, ctxKey, true))
}

// release libera el lock en un contexto nuevo: el original puede estar
// cancelado y el lock debe soltarse igual
func (l *RedisLocker) release(key, value string) {
	reply, err := l.client.Eval(context.Background(), releaseScript, []string{key}, value).Result()
	if err != nil {
		log.Printf("⚠️  Failed to release conversation lock %s: %v", key, err)
		return
	}
	if count, ok := reply.(int64); !ok || count != 1 {
		// Expiró por TTL antes de liberarse; el SetNX del próximo turno lo retoma
		log.Printf("⚠️  Conversation lock %s was not held at release", key)
	}
}
