// Package app wires every runtime component into a single managed server:
// config, the persisted store, session/job-context managers, the channel
// adapters, the reasoning loop, and the background sweep. It owns the
// process lifecycle (Start/Stop) as a single composition root that starts
// and stops its component managers in dependency order.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/agentcore/runtime/internal/broadcast"
	"github.com/agentcore/runtime/internal/channels"
	"github.com/agentcore/runtime/internal/config"
	"github.com/agentcore/runtime/internal/egress"
	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/llmprovider"
	"github.com/agentcore/runtime/internal/metrics"
	"github.com/agentcore/runtime/internal/reasoning"
	"github.com/agentcore/runtime/internal/router"
	"github.com/agentcore/runtime/internal/safety"
	"github.com/agentcore/runtime/internal/sessions"
	"github.com/agentcore/runtime/internal/store"
	"github.com/agentcore/runtime/internal/sweep"
	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/internal/tools/builtin"
	"github.com/agentcore/runtime/internal/tracing"
	"github.com/agentcore/runtime/internal/webauth"
	"github.com/agentcore/runtime/internal/workerauth"
)

// MaxConcurrentJobs bounds how many jobs can be in an active state at
// once, passed through to jobctx.NewContextManager.
const MaxConcurrentJobs = 10

// Server is the fully wired runtime: every package this module builds,
// composed and started together.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	Store        store.Store
	Sessions     *sessions.Manager
	Contexts     *jobctx.ContextManager
	Hub          *broadcast.Hub
	Metrics      *metrics.Metrics
	Registry     *tools.Registry
	Dispatcher   *tools.Dispatcher
	Provider     llmprovider.Provider
	Loop         *reasoning.Loop
	Router       *router.Router
	Channels     *channels.Manager
	WebhookHTTP  *channels.WebhookServer
	WorkerTokens *workerauth.TokenStore
	Sweeper      *sweep.Sweeper
	Tracer       *tracing.Tracer
	policyStore  *config.PolicyStore
	policyStop   func() error
	tracerStop   func(context.Context) error

	threadJobsMu sync.Mutex
	threadJobs   map[uuid.UUID]uuid.UUID

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Server from cfg. It opens the store, constructs every
// manager, registers the built-in tools, and wires the reference HTTP
// and WebSocket channels, but does not start anything yet: call Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.OpenSQLiteStore(ctx, &store.SQLiteConfig{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	policyStore, policyStop, err := buildPolicyStore(cfg, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("app: build egress policy: %w", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		_ = st.Close()
		if policyStop != nil {
			_ = policyStop()
		}
		return nil, fmt.Errorf("app: build llm provider: %w", err)
	}

	sessionMgr := sessions.NewManager()
	contextMgr := jobctx.NewContextManager(MaxConcurrentJobs)
	hub := broadcast.NewHub()
	m := metrics.New()
	hub = hub.WithMetrics(m)

	registry := tools.NewRegistry()
	if err := registerBuiltinTools(registry, contextMgr, policyStore, cfg.Workspace); err != nil {
		_ = st.Close()
		if policyStop != nil {
			_ = policyStop()
		}
		return nil, fmt.Errorf("app: register tools: %w", err)
	}

	safetyLayer := safety.NewSafetyLayer()
	dispatcher := tools.NewDispatcher(registry, safetyLayer)

	tracer, tracerStop := tracing.New(tracing.Config{
		ServiceName:  "agentcore",
		Endpoint:     cfg.Tracing.Endpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Insecure:     cfg.Tracing.Insecure,
	})

	loop := reasoning.NewLoop(provider, registry, dispatcher, hub)
	loop.Metrics = m
	loop.Logger = logger
	loop.Tracer = tracer

	channelMgr := channels.NewManager()
	channelMgr.Logger = logger
	httpChannel := channels.NewHTTPChannel(channels.HTTPConfig{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		WebhookSecret: cfg.Webhook.Secret,
		UserID:        cfg.Webhook.UserID,
	})
	channelMgr.Add(httpChannel)

	wsChannel := channels.NewWebSocketChannel(channels.WebSocketConfig{
		UserID: cfg.Webhook.UserID,
		Hub:    hub,
		Logger: logger,
	})
	channelMgr.Add(wsChannel)

	webhookServer := channels.NewWebhookServer(channels.WebhookServerConfig{
		Addr:   fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Logger: logger,
	})
	webAuthMW := webauth.Middleware(webauth.Config{Token: cfg.WebAuth.Token, JWTSecret: cfg.WebAuth.JWTSecret})

	// httpChannel.Routes() and the worker job-control routes both declare
	// their own absolute paths ("/health", "/webhook", "/worker/..."), so
	// they're composed into one root mux rather than mounted under a
	// stripped prefix; only the websocket handler (which never inspects
	// its own path) is mounted under a prefix.
	workerTokens := workerauth.NewTokenStore()
	rootMux := http.NewServeMux()
	rootMux.Handle("/", httpChannel.Routes())
	rootMux.Handle("/worker/", workerauth.Middleware(workerTokens)(workerRoutes(contextMgr)))
	webhookServer.AddRoutes("", rootMux)
	webhookServer.AddRoutes("/ws", webAuthMW(wsChannel))

	sweeper := sweep.New(sweep.DefaultConfig(), sessionMgr, contextMgr, logger)

	return &Server{
		cfg:          cfg,
		logger:       logger,
		Store:        st,
		Sessions:     sessionMgr,
		Contexts:     contextMgr,
		Hub:          hub,
		Metrics:      m,
		Registry:     registry,
		Dispatcher:   dispatcher,
		Provider:     provider,
		Loop:         loop,
		Router:       router.NewRouter(),
		Channels:     channelMgr,
		WebhookHTTP:  webhookServer,
		WorkerTokens: workerTokens,
		Sweeper:      sweeper,
		Tracer:       tracer,
		policyStore:  policyStore,
		policyStop:   policyStop,
		tracerStop:   tracerStop,
		threadJobs:   make(map[uuid.UUID]uuid.UUID),
	}, nil
}

func buildPolicyStore(cfg *config.Config, logger *slog.Logger) (*config.PolicyStore, func() error, error) {
	if cfg.Policy.Path == "" {
		allowlist, creds := config.EgressDefaults()
		return config.NewStaticPolicyStore(allowlist, creds), nil, nil
	}
	return config.WatchPolicyFile(cfg.Policy.Path, logger)
}

func buildProvider(cfg *config.Config) (llmprovider.Provider, error) {
	switch cfg.LLM.DefaultProvider {
	case "openai":
		return llmprovider.NewOpenAIProvider(llmprovider.OpenAIConfig{APIKey: cfg.LLM.OpenAIAPIKey})
	default:
		return llmprovider.NewAnthropicProvider(llmprovider.AnthropicConfig{APIKey: cfg.LLM.AnthropicAPIKey})
	}
}

func registerBuiltinTools(registry *tools.Registry, contextMgr *jobctx.ContextManager, policyStore *config.PolicyStore, ws config.WorkspaceConfig) error {
	registry.Register(builtin.NewEchoTool())
	registry.Register(builtin.NewTimeTool())
	registry.Register(builtin.NewJSONTool())
	registry.Register(builtin.NewJobTool(contextMgr))
	registry.Register(builtin.NewHelpTool(registry))
	registry.Register(builtin.NewShellTool())
	registry.Register(builtin.NewMemoryTool(builtin.NewScratchStore()))

	guard := egress.NewURLGuard()
	registry.Register(builtin.NewHTTPToolWithPolicy(guard, policyStore.Decider(), egress.EnvCredentialResolver{}))

	if ws.Root != "" {
		workspace, err := builtin.NewWorkspace(ws.Root)
		if err != nil {
			return fmt.Errorf("workspace: %w", err)
		}
		registry.Register(builtin.NewReadFileTool(workspace))
		registry.Register(builtin.NewWriteFileTool(workspace))
		registry.Register(builtin.NewListDirTool(workspace))
	}
	return nil
}

// Start starts every registered channel, the webhook HTTP server, and the
// background session/job sweep, then begins consuming the merged message
// stream. It returns once every component has started; Start does not
// block for the lifetime of the server (use Stop to shut it all down).
func (s *Server) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	stream, err := s.Channels.StartAll(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("app: start channels: %w", err)
	}

	if err := s.WebhookHTTP.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("app: start webhook server: %w", err)
	}

	if err := s.Sweeper.Start(); err != nil {
		cancel()
		return fmt.Errorf("app: start sweep: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.consumeMessages(runCtx, stream)
	}()

	s.logger.Info("agentcore server started",
		"addr", fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		"llm_provider", s.Provider.Name(),
	)
	return nil
}

// Stop shuts down every component in reverse dependency order, waiting
// for the message-consumption goroutine to drain before returning.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	s.Sweeper.Stop()

	if err := s.WebhookHTTP.Shutdown(ctx); err != nil {
		s.logger.Warn("webhook server shutdown error", "error", err)
	}
	s.Channels.ShutdownAll(ctx)

	s.wg.Wait()

	if s.policyStop != nil {
		if err := s.policyStop(); err != nil {
			s.logger.Warn("policy watcher shutdown error", "error", err)
		}
	}

	if s.tracerStop != nil {
		if err := s.tracerStop(ctx); err != nil {
			s.logger.Warn("tracer shutdown error", "error", err)
		}
	}

	if err := s.Store.Close(); err != nil {
		return fmt.Errorf("app: close store: %w", err)
	}
	s.logger.Info("agentcore server stopped")
	return nil
}
