package main

import (
	"log"

	"github.com/Abraxas-365/converso/channels"
	"github.com/Abraxas-365/converso/channels/channeladapters/whatsapp"
	"github.com/Abraxas-365/converso/channels/channelapi"
	"github.com/Abraxas-365/converso/channels/channelmanager"
	"github.com/Abraxas-365/converso/channels/channelsinfra"
	"github.com/Abraxas-365/converso/channels/mediastore"

	"github.com/Abraxas-365/converso/engine"
	"github.com/Abraxas-365/converso/engine/bypass"
	"github.com/Abraxas-365/converso/engine/convstate"
	"github.com/Abraxas-365/converso/engine/engineapi"
	"github.com/Abraxas-365/converso/engine/engineinfra"
	"github.com/Abraxas-365/converso/engine/enginesrv"
	"github.com/Abraxas-365/converso/engine/graphexec"
	"github.com/Abraxas-365/converso/engine/msgprocessor"
	"github.com/Abraxas-365/converso/engine/nodecatalog"

	"github.com/Abraxas-365/converso/identification"
	"github.com/Abraxas-365/converso/identification/identinfra"

	"github.com/Abraxas-365/converso/intent"
	"github.com/Abraxas-365/converso/intent/intentengines"
	"github.com/Abraxas-365/converso/intent/intentinfra"

	"github.com/Abraxas-365/converso/pkg/config"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
)

// Container contiene todas las dependencias de la aplicación
type Container struct {
	// =================================================================
	// CONFIGURATION & INFRASTRUCTURE
	// =================================================================
	Config      *config.Config
	DB          *sqlx.DB
	RedisClient *redis.Client

	// =================================================================
	// REPOSITORIES
	// =================================================================
	MessageRepo     engine.MessageRepository
	WorkflowRepo    engine.WorkflowRepository
	StateRepo       engine.ConversationStateRepository
	RoutingRuleRepo engine.RoutingRuleRepository
	BypassRuleRepo  engine.BypassRuleRepository
	ChannelRepo     channels.ChannelRepository
	PersonRepo      identification.PersonRepository
	IntentRuleRepo  intent.RuleRepository

	// =================================================================
	// EXTERNAL COLLABORATORS
	// =================================================================
	UpstreamDirectory identification.UpstreamDirectory
	KnowledgeSearcher engine.KnowledgeSearcher
	SchedulingService engine.SchedulingService
	MediaStore        channels.MediaStore

	// =================================================================
	// ENGINE
	// =================================================================
	WorkflowCache engine.WorkflowCache
	Locker        engine.ConversationLocker
	Evaluator     engine.ExpressionEvaluator
	Catalog       engine.Catalog
	Executor      engine.GraphExecutor
	StateManager  *convstate.Manager
	StateCleaner  *convstate.Cleaner
	BypassRouter  *bypass.Router
	Classifier    engine.IntentClassifier
	Processor     *msgprocessor.Processor

	// =================================================================
	// CHANNELS
	// =================================================================
	WhatsAppAdapter *whatsapp.Adapter
	ChannelManager  *channelmanager.Manager

	// =================================================================
	// SERVICES
	// =================================================================
	WorkflowService *enginesrv.WorkflowService
	RuleService     *enginesrv.RuleService

	// =================================================================
	// API
	// =================================================================
	AuthService            *engineapi.AuthService
	AdminHandler           *engineapi.Handler
	ChannelHandler         *channelapi.ChannelHandler
	WhatsAppWebhookHandler *whatsapp.WebhookHandler
	WhatsAppWebhookRoutes  *whatsapp.WebhookRoutes
}

// NewContainer crea el contenedor de dependencias
func NewContainer(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client) *Container {
	c := &Container{
		Config:      cfg,
		DB:          db,
		RedisClient: redisClient,
	}

	log.Println("📦 Initializing dependency container...")

	c.initRepositories()
	c.initExternalCollaborators()
	c.initChannelComponents() // ⚡ Channels ANTES del engine
	c.initEngineComponents()  // ⚙️ Engine usa ChannelManager
	c.initServices()
	c.initAPIComponents()

	log.Println("✅ Dependency container initialized successfully")

	return c
}

// =================================================================
// REPOSITORIES
// =================================================================

func (c *Container) initRepositories() {
	log.Println("  🗄️ Initializing repositories...")
	c.MessageRepo = engineinfra.NewPostgresMessageRepository(c.DB)
	c.WorkflowRepo = engineinfra.NewPostgresWorkflowRepository(c.DB)
	c.StateRepo = engineinfra.NewPostgresStateRepository(c.DB)
	c.RoutingRuleRepo = engineinfra.NewPostgresRoutingRuleRepository(c.DB)
	c.BypassRuleRepo = engineinfra.NewPostgresBypassRuleRepository(c.DB)
	c.ChannelRepo = channelsinfra.NewPostgresChannelRepository(c.DB)
	c.PersonRepo = identinfra.NewPostgresPersonRepository(c.DB)
	c.IntentRuleRepo = intentinfra.NewPostgresRuleRepository(c.DB)
}

// =================================================================
// EXTERNAL COLLABORATORS
// =================================================================

func (c *Container) initExternalCollaborators() {
	log.Println("  🌐 Initializing external collaborators...")

	c.UpstreamDirectory = identinfra.NewHTTPUpstreamDirectory(
		c.Config.Upstream.DirectoryBaseURL,
		c.Config.Upstream.DirectoryAPIKey,
	)
	c.KnowledgeSearcher = engineinfra.NewHTTPKnowledgeSearcher(
		c.Config.Upstream.KnowledgeBaseURL,
		c.Config.Upstream.KnowledgeAPIKey,
	)
	c.SchedulingService = engineinfra.NewHTTPSchedulingService(
		c.Config.Upstream.SchedulingBaseURL,
		c.Config.Upstream.SchedulingAPIKey,
	)

	c.MediaStore = mediastore.NewS3Store(mediastore.Config{
		Region:          c.Config.Media.S3Region,
		Bucket:          c.Config.Media.S3Bucket,
		AccessKeyID:     c.Config.Media.AccessKeyID,
		SecretAccessKey: c.Config.Media.SecretAccessKey,
	})
}

// =================================================================
// CHANNELS
// =================================================================

func (c *Container) initChannelComponents() {
	log.Println("  📡 Initializing channel components...")

	c.WhatsAppAdapter = whatsapp.NewAdapter(c.Config.Channels.WhatsAppAppSecret)

	c.ChannelManager = channelmanager.NewManager(c.ChannelRepo)
	c.ChannelManager.RegisterAdapter(c.WhatsAppAdapter)
}

// =================================================================
// ENGINE
// =================================================================

func (c *Container) initEngineComponents() {
	log.Println("  ⚙️ Initializing engine components...")

	c.WorkflowCache = engineinfra.NewRedisWorkflowCache(c.RedisClient, c.Config.Engine.WorkflowCacheTTL)
	c.Locker = convstate.NewRedisLocker(c.RedisClient)
	c.Evaluator = engine.NewCelEvaluator()

	c.Classifier = intentengines.NewRuleClassifier(c.IntentRuleRepo)

	c.Catalog = nodecatalog.NewRegistry(
		nodecatalog.NewMessageBehavior(c.Evaluator),
		nodecatalog.NewCollectInputBehavior(),
		nodecatalog.NewIntentSwitchBehavior(c.Classifier),
		nodecatalog.NewKnowledgeLookupBehavior(c.KnowledgeSearcher),
		nodecatalog.NewBookingBehavior(c.SchedulingService),
		nodecatalog.NewIdentificationBehavior(c.UpstreamDirectory, c.PersonRepo),
		nodecatalog.NewHumanHandoffBehavior(),
		nodecatalog.NewEndBehavior(),
	)

	c.Executor = graphexec.NewExecutor(c.Catalog, graphexec.Config{
		ErrorThreshold: c.Config.Engine.ErrorThreshold,
		MaxHopsPerTurn: c.Config.Engine.MaxHopsPerTurn,
		NodeTimeout:    c.Config.Engine.NodeTimeout,
	})

	c.StateManager = convstate.NewManager(c.StateRepo, &convstate.ManagerConfig{
		DefaultTTL:     c.Config.Engine.ConversationTTL,
		MaxHistorySize: c.Config.Engine.MaxHistoryMessages,
	})

	c.StateCleaner = convstate.NewCleaner(c.StateManager, c.Config.Engine.CleanupCronSpec)
	if err := c.StateCleaner.Start(); err != nil {
		log.Fatalf("❌ Failed to start state cleaner: %v", err)
	}
	log.Println("    ✅ State cleaner started")

	c.BypassRouter = bypass.NewRouter(c.BypassRuleRepo)

	c.Processor = msgprocessor.NewProcessor(
		msgprocessor.Config{
			LockTTL: c.Config.Engine.LockTTL,
		},
		c.MessageRepo,
		c.WorkflowRepo,
		c.WorkflowCache,
		c.RoutingRuleRepo,
		c.StateManager,
		c.BypassRouter,
		c.Executor,
		c.Classifier,
		c.Locker,
		c.ChannelManager,
	)
}

// =================================================================
// SERVICES
// =================================================================

func (c *Container) initServices() {
	log.Println("  🔧 Initializing services...")

	c.WorkflowService = enginesrv.NewWorkflowService(c.WorkflowRepo, c.WorkflowCache, c.Catalog)
	c.RuleService = enginesrv.NewRuleService(c.RoutingRuleRepo, c.BypassRuleRepo)
}

// =================================================================
// API
// =================================================================

func (c *Container) initAPIComponents() {
	log.Println("  🛣️ Initializing API components...")

	c.AuthService = engineapi.NewAuthService(
		c.Config.Admin.JWTSecret,
		c.Config.Admin.AdminSecretHash,
		c.Config.Admin.TokenExpiration,
	)
	c.AdminHandler = engineapi.NewHandler(c.AuthService, c.WorkflowService, c.RuleService)

	c.ChannelHandler = channelapi.NewChannelHandler(c.Processor, c.MediaStore)

	c.WhatsAppWebhookHandler = whatsapp.NewWebhookHandler(c.ChannelRepo, c.WhatsAppAdapter)
	c.WhatsAppWebhookRoutes = whatsapp.NewWebhookRoutes(
		c.WhatsAppWebhookHandler,
		c.ChannelHandler.ProcessIncomingMessage,
	)
}

// =================================================================
// UTILITY METHODS
// =================================================================

func (c *Container) Cleanup() {
	log.Println("🧹 Cleaning up container resources...")

	if c.StateCleaner != nil {
		log.Println("  ⏰ Stopping state cleaner...")
		c.StateCleaner.Stop()
	}

	if c.DB != nil {
		log.Println("  🗄️ Closing database connections...")
		c.DB.Close()
	}

	if c.RedisClient != nil {
		log.Println("  🔴 Closing Redis connections...")
		c.RedisClient.Close()
	}

	log.Println("✅ Container cleanup complete")
}

func (c *Container) HealthCheck() map[string]bool {
	health := make(map[string]bool)

	if c.DB != nil {
		health["database"] = c.DB.Ping() == nil
	} else {
		health["database"] = false
	}

	if c.RedisClient != nil {
		health["redis"] = c.RedisClient.Ping(c.RedisClient.Context()).Err() == nil
	} else {
		health["redis"] = false
	}

	health["executor"] = c.Executor != nil
	health["message_processor"] = c.Processor != nil
	health["channel_manager"] = c.ChannelManager != nil
	health["whatsapp_adapter"] = c.WhatsAppAdapter != nil
	health["state_cleaner"] = c.StateCleaner != nil

	return health
}

func (c *Container) GetServiceNames() []string {
	return []string{
		"WorkflowService",
		"RuleService",
		"StateManager",
		"MessageProcessor",
		"ChannelManager",
		"BypassRouter",
		"Classifier",
	}
}

func (c *Container) GetRepositoryNames() []string {
	return []string{
		"MessageRepo",
		"WorkflowRepo",
		"StateRepo",
		"RoutingRuleRepo",
		"BypassRuleRepo",
		"ChannelRepo",
		"PersonRepo",
		"IntentRuleRepo",
	}
}
