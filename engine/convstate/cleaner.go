package convstate

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
)

// Cleaner marca periódicamente los estados de conversación vencidos como
// expirados. Corre entre turnos; nunca toca una conversación con lock.
type Cleaner struct {
	manager   *Manager
	cron      *cron.Cron
	spec      string
	batchSize int
}

func NewCleaner(manager *Manager, spec string) *Cleaner {
	if spec == "" {
		spec = "@every 15m"
	}
	return &Cleaner{
		manager:   manager,
		cron:      cron.New(),
		spec:      spec,
		batchSize: 500,
	}
}

// Start registra y arranca el job periódico
func (c *Cleaner) Start() error {
	_, err := c.cron.AddFunc(c.spec, func() {
		expired, err := c.manager.ExpireStale(context.Background(), c.batchSize)
		if err != nil {
			log.Printf("❌ Conversation cleanup failed: %v", err)
			return
		}
		if expired > 0 {
			log.Printf("🧹 Marked %d conversations as expired", expired)
		}
	})
	if err != nil {
		return err
	}
	c.cron.Start()
	return nil
}

// Stop detiene el job y espera a que termine la corrida en curso
func (c *Cleaner) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}
