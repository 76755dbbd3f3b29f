package convstate

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/converso/engine"
)

type lockContextKey string

// LocalLocker exclusión por hilo dentro de un solo proceso: a lo más una
// invocación del ejecutor en vuelo por hilo lógico. Un segundo mensaje
// del mismo usuario espera a que termine el anterior, no se intercala.
// Reentrante dentro del mismo contexto.
type LocalLocker struct {
	locks sync.Map // thread key -> *sync.Mutex
}

var _ engine.ConversationLocker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{}
}

// WithLock ejecuta fn con el lock del hilo tomado. La suspensión en I/O
// externo dentro de fn no libera la exclusividad.
func (l *LocalLocker) WithLock(
	ctx context.Context,
	threadKey string,
	ttl time.Duration,
	fn func(ctx context.Context) error,
) error {
	key := lockContextKey("conv_lock:" + threadKey)

	// Reentrada: el contexto ya porta este lock
	if ctx.Value(key) != nil {
		return fn(ctx)
	}

	muVal, _ := l.locks.LoadOrStore(threadKey, &sync.Mutex{})
	mu := muVal.(*sync.Mutex)

	mu.Lock()
	defer mu.Unlock()

	return fn(context.WithValue(ctx, key, true))
}
