package msgprocessor

import (
	"context"
	"log"
	"time"

	"github.com/Abraxas-365/converso/channels"
	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/engine/bypass"
	"github.com/Abraxas-365/converso/engine/convstate"
	"github.com/Abraxas-365/converso/engine/routing"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/Abraxas-365/craftable/errx"
)

// Config del procesador de mensajes
type Config struct {
	// DefaultWorkflowKey es el workflow que atiende conversaciones sin
	// regla de bypass
	DefaultWorkflowKey string

	// LockTTL tope de tenencia del lock por conversación
	LockTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.DefaultWorkflowKey == "" {
		c.DefaultWorkflowKey = "main"
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 60 * time.Second
	}
}

// Processor es el pipeline de entrada: de mensaje crudo de canal a respuesta
// enviada. Serializa el procesamiento por conversación: dos mensajes del
// mismo hilo nunca ejecutan el grafo a la vez.
type Processor struct {
	config         Config
	messageRepo    engine.MessageRepository
	workflowRepo   engine.WorkflowRepository
	workflowCache  engine.WorkflowCache
	ruleRepo       engine.RoutingRuleRepository
	stateManager   *convstate.Manager
	bypassRouter   *bypass.Router
	executor       engine.GraphExecutor
	classifier     engine.IntentClassifier
	locker         engine.ConversationLocker
	channelManager channels.ChannelManager
}

func NewProcessor(
	config Config,
	messageRepo engine.MessageRepository,
	workflowRepo engine.WorkflowRepository,
	workflowCache engine.WorkflowCache,
	ruleRepo engine.RoutingRuleRepository,
	stateManager *convstate.Manager,
	bypassRouter *bypass.Router,
	executor engine.GraphExecutor,
	classifier engine.IntentClassifier,
	locker engine.ConversationLocker,
	channelManager channels.ChannelManager,
) *Processor {
	config.applyDefaults()
	return &Processor{
		config:         config,
		messageRepo:    messageRepo,
		workflowRepo:   workflowRepo,
		workflowCache:  workflowCache,
		ruleRepo:       ruleRepo,
		stateManager:   stateManager,
		bypassRouter:   bypassRouter,
		executor:       executor,
		classifier:     classifier,
		locker:         locker,
		channelManager: channelManager,
	}
}

// Process es el entry point para un mensaje entrante
func (p *Processor) Process(ctx context.Context, inbound engine.InboundMessage) error {
	log.Printf("🚀 Processing inbound message from sender %s on channel %s", inbound.SenderID, inbound.ChannelID)

	// 1. Resolver bypass antes de tocar el engine: números dedicados van
	// directo a su workflow, con historial aislado si la regla lo pide
	target, err := p.bypassRouter.Resolve(ctx, bypass.ChannelIdentifier{
		TenantID:        inbound.TenantID,
		PhoneNumber:     inbound.SenderID,
		ChannelNumberID: inbound.ChannelNumberID,
	})
	if err != nil {
		return errx.Wrap(err, "failed to resolve bypass rules", errx.TypeInternal)
	}

	workflowKey := p.config.DefaultWorkflowKey
	historyScope := ""
	if target != nil {
		workflowKey = target.WorkflowKey
		historyScope = target.HistoryScope()
		log.Printf("🔀 Bypass rule matched: sender %s -> workflow %s", inbound.SenderID, workflowKey)
	}

	// 2. Serializar el turno por hilo. El lock va por (channel+sender+scope)
	// y el estado se resuelve adentro: dos primeros mensajes simultáneos del
	// mismo sender no pueden crear dos conversaciones
	lockKey := convstate.ThreadKey(inbound.ChannelID, inbound.SenderID, historyScope)
	return p.locker.WithLock(ctx, lockKey, p.config.LockTTL, func(ctx context.Context) error {
		state, err := p.stateManager.GetOrCreate(ctx, inbound.TenantID, inbound.ChannelID, inbound.SenderID, historyScope)
		if err != nil {
			return err
		}
		return p.processTurn(ctx, inbound, state, workflowKey, target)
	})
}

// processTurn corre dentro del lock del hilo con el estado ya resuelto: ve
// las escrituras del turno anterior que haya esperado el lock.
func (p *Processor) processTurn(ctx context.Context, inbound engine.InboundMessage, state *engine.ConversationState, workflowKey string, target *bypass.TargetWorkflowRef) error {
	msg := p.buildMessage(inbound, state.ID)
	msg.MarkAsProcessing()
	if err := p.messageRepo.Save(ctx, msg); err != nil {
		return errx.Wrap(err, "failed to save inbound message", errx.TypeInternal)
	}
	state.AddMessage(msg.ID, "user")

	// Workflow activo, cache primero
	wf, err := p.loadWorkflow(ctx, inbound.TenantID, workflowKey)
	if err != nil {
		msg.MarkAsFailed()
		p.messageRepo.Save(ctx, msg)
		return err
	}

	// Versión publicada nueva: la conversación sigue desde su nodo actual
	// si existe en la versión nueva; el ejecutor repara si no
	if state.WorkflowID != wf.ID {
		state.WorkflowID = wf.ID
		state.WorkflowVersion = wf.Version
	}

	intent := p.classifyIntent(ctx, inbound, msg)

	rules, err := p.ruleRepo.FindActiveByTenant(ctx, inbound.TenantID)
	if err != nil {
		log.Printf("⚠️ Failed to load routing rules, continuing without them: %v", err)
		rules = nil
	}
	rules = routing.NewEngine(rules).Rules()

	result, err := p.executor.ExecuteTurn(ctx, wf, state, msg, intent, rules)
	if err != nil {
		msg.MarkAsFailed()
		p.messageRepo.Save(ctx, msg)
		return errx.Wrap(err, "failed to execute turn", errx.TypeInternal)
	}

	if err := p.stateManager.Save(ctx, state); err != nil {
		return err
	}

	if result.Escalated {
		log.Printf("🙋 Conversation %s escalated to agent %q", state.ID, result.Agent)
	}

	// 3. Responder por el canal
	if result.Response != nil {
		out := channels.OutgoingMessage{
			ChannelID:   inbound.ChannelID,
			TenantID:    inbound.TenantID,
			RecipientID: inbound.SenderID,
			Response:    *result.Response,
		}
		if target != nil && target.Agent != "" {
			out.Metadata = map[string]any{"agent": target.Agent}
		}
		if err := p.channelManager.Send(ctx, out); err != nil {
			log.Printf("❌ Failed to send response for conversation %s: %v", state.ID, err)
			msg.MarkAsFailed()
			return p.messageRepo.Save(ctx, msg)
		}
	}

	msg.MarkAsProcessed()
	return p.messageRepo.Save(ctx, msg)
}

func (p *Processor) buildMessage(inbound engine.InboundMessage, conversationID kernel.ConversationID) engine.Message {
	now := time.Now()
	metadata := inbound.Metadata
	return engine.Message{
		ID:             kernel.GenerateMessageID(),
		TenantID:       inbound.TenantID,
		ChannelID:      inbound.ChannelID,
		ConversationID: conversationID,
		SenderID:       inbound.SenderID,
		Content: engine.MessageContent{
			Type:        engine.MessageTypeText,
			Text:        inbound.Text,
			Attachments: inbound.Attachments,
			Metadata:    metadata,
		},
		Status:    engine.MessageStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (p *Processor) loadWorkflow(ctx context.Context, tenantID kernel.TenantID, key string) (*engine.WorkflowDefinition, error) {
	wf, err := p.workflowCache.Get(ctx, tenantID, key)
	if err == nil {
		return wf, nil
	}
	if !errx.IsType(err, errx.TypeNotFound) {
		log.Printf("⚠️ Workflow cache read failed, falling back to repository: %v", err)
	}

	wf, err = p.workflowRepo.FindActiveByKey(ctx, key, tenantID)
	if err != nil {
		return nil, err
	}

	if cacheErr := p.workflowCache.Set(ctx, wf); cacheErr != nil {
		log.Printf("⚠️ Failed to cache workflow %s: %v", wf.ID, cacheErr)
	}
	return wf, nil
}

// classifyIntent nunca tumba el turno: sin clasificador o con error, el
// grafo decide solo con el texto.
func (p *Processor) classifyIntent(ctx context.Context, inbound engine.InboundMessage, msg engine.Message) *engine.IntentResult {
	if p.classifier == nil {
		return nil
	}
	result, err := p.classifier.Classify(ctx, msg.Content.Text, map[string]any{
		"tenant_id":  inbound.TenantID.String(),
		"channel_id": inbound.ChannelID.String(),
	})
	if err != nil {
		log.Printf("⚠️ Intent classification failed: %v", err)
		return nil
	}
	return result
}
