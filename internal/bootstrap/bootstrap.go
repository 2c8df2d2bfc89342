package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"beatrice-server-go/internal/app/services"
	"beatrice-server-go/internal/domain/auth"
	"beatrice-server-go/internal/domain/eventbus"
	"beatrice-server-go/internal/domain/orchestrator"
	"beatrice-server-go/internal/domain/providers"
	"beatrice-server-go/internal/domain/providers/database"
	"beatrice-server-go/internal/domain/providers/memory"
	"beatrice-server-go/internal/domain/providers/tools"
	platformconfig "beatrice-server-go/internal/platform/config"
	platformerrors "beatrice-server-go/internal/platform/errors"
	"beatrice-server-go/internal/platform/httpc"
	platformlogging "beatrice-server-go/internal/platform/logging"
	"beatrice-server-go/internal/platform/observability"
	platformstorage "beatrice-server-go/internal/platform/storage"
	httptransport "beatrice-server-go/internal/transport/http"
	httpwebapi "beatrice-server-go/internal/transport/http/webapi"
	"beatrice-server-go/internal/transport/ws"
)

const (
	logTag         = "引导"
	sweepInterval  = time.Minute
	sessionIdleTTL = 30 * time.Minute
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

// Options 启动参数
type Options struct {
	// ConfigPath overrides BEATRICE_CONFIG / .config.yaml.
	ConfigPath string
	// DisableDotEnv skips loading .env.
	DisableDotEnv bool
}

type appState struct {
	opts   Options
	config *platformconfig.Config
	path   string
	logger *platformlogging.Logger
	db     *gorm.DB

	bus   *eventbus.Bus
	audit *eventbus.AuditRecorder

	registry   *orchestrator.Registry
	orch       *orchestrator.Orchestrator
	builder    *providers.Builder
	settings   *services.Settings
	dispatcher *services.Dispatcher

	// closers release external connections, run in reverse order.
	closers []func() error
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context, opts Options) error {
	state := &appState{opts: opts}
	steps := InitGraph()
	err := executeInitSteps(ctx, steps, state)
	defer state.close()
	if err != nil {
		return err
	}
	logBootstrapGraph(state.logger, steps)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)
	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		return err
	}
	return waitForShutdown(groupCtx, cancel, state.logger, group)
}

// IssueToken loads the configuration and signs an API token for subject.
func IssueToken(opts Options, subject string) (string, error) {
	state := &appState{opts: opts}
	if err := loadConfigStep(context.Background(), state); err != nil {
		return "", err
	}
	cfg := state.config.Server.Auth
	if cfg.Secret == "" {
		return "", platformerrors.New(platformerrors.KindConfig, "auth.issue", "server.auth.secret is not set")
	}
	return auth.NewTokenIssuer(cfg.Secret, cfg.Issuer).Issue(subject)
}

func logBootstrapGraph(logger *platformlogging.Logger, steps []initStep) {
	if logger == nil {
		return
	}
	logger.InfoTag(logTag, "初始化依赖关系概览")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag(logTag, "%s (%s)", step.ID, step.Title)
			continue
		}
		logger.InfoTag(logTag, "%s (%s) <- %s", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "execute init steps", "nil bootstrap state")
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(platformerrors.KindBootstrap, step.ID, "missing execute function")
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}
			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph lists the startup steps in execution order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load-runtime",
			Title:   "Load YAML configuration and environment overrides",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load-runtime"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Open and migrate the SQLite database",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "eventbus:init-audit",
			Title:     "Start the event bus and audit recorder",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initAuditStep,
		},
		{
			ID:        "orchestrator:init-registry",
			Title:     "Connect provider dependencies and build the registry",
			DependsOn: []string{"eventbus:init-audit"},
			Kind:      platformerrors.KindDomain,
			Execute:   initRegistryStep,
		},
		{
			ID:        "session:init-dispatcher",
			Title:     "Create the session tool dispatcher",
			DependsOn: []string{"orchestrator:init-registry"},
			Kind:      platformerrors.KindDomain,
			Execute:   initDispatcherStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := platformconfig.NewLoader().WithDotEnv(!state.opts.DisableDotEnv)
	if state.opts.ConfigPath != "" {
		loader = loader.WithPath(state.opts.ConfigPath)
	}
	result, err := loader.Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.path = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return err
	}
	state.logger = logger
	state.closers = append(state.closers, logger.Close)
	observability.Setup(logger.Slog(), state.config.Log.Observability)
	logger.InfoTag(logTag, "配置已加载: %s", state.path)
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	db, err := platformstorage.Open(state.config.Database.Path)
	if err != nil {
		return err
	}
	state.db = db
	state.closers = append(state.closers, func() error { return platformstorage.Close(db) })
	state.logger.InfoTag(logTag, "数据库已就绪: %s", state.config.Database.Path)
	return nil
}

func initAuditStep(_ context.Context, state *appState) error {
	bus := eventbus.New(4)
	bus.OnDrop(func(topic string) {
		state.logger.WarnTag("审计", "事件队列已满，丢弃 %s", topic)
	})
	bus.Start()
	recorder := eventbus.NewAuditRecorder(bus, platformstorage.NewEventRepository(state.db), state.logger)
	if err := recorder.Attach(); err != nil {
		bus.Stop()
		return err
	}
	state.bus = bus
	state.audit = recorder
	state.closers = append(state.closers, func() error {
		recorder.Detach()
		bus.Stop()
		return nil
	})
	return nil
}

// connectDependencies dials the optional backends. A failed dial only leaves
// the matching providers unregistered.
func connectDependencies(ctx context.Context, state *appState) providers.Dependencies {
	cfg := state.config
	logger := state.logger
	deps := providers.Dependencies{
		HTTP:          httpc.New(),
		DB:            state.db,
		FunctionTools: services.Declarations(),
	}

	if data, err := openSQLiteData(cfg); err != nil {
		logger.WarnTag("MCP", "sqlite 数据库不可用，sqlite 不会注册: %v", err)
	} else if data != nil {
		deps.SQLite = data
		state.closers = append(state.closers, func() error { return platformstorage.Close(data) })
	}

	if cfg.Redis.Addr != "" {
		client, err := memory.DialRedis(ctx, cfg.Redis)
		if err != nil {
			logger.WarnTag("MCP", "Redis 不可用，redis-memory 不会注册: %v", err)
		} else {
			deps.Redis = client
			state.closers = append(state.closers, client.Close)
		}
	}

	dialPostgres := func(name, dsn string) database.Querier {
		if dsn == "" {
			return nil
		}
		pool, err := database.DialPostgres(ctx, dsn)
		if err != nil {
			logger.WarnTag("MCP", "%s 不可用: %v", name, err)
			return nil
		}
		state.closers = append(state.closers, func() error {
			pool.Close()
			return nil
		})
		return pool
	}
	deps.PostgresNeon = dialPostgres("postgres-neon", cfg.Postgres.NeonDSN)
	deps.PostgresLocal = dialPostgres("postgres-local", cfg.Postgres.LocalDSN)

	if cfg.MCP.Enabled {
		session, err := tools.DialMCP(ctx, cfg.MCP, logger)
		if err != nil {
			logger.WarnTag("MCP", "MCP 工具服务不可用，mcp-client 不会注册: %v", err)
		} else {
			deps.MCP = session
			state.closers = append(state.closers, session.Close)
		}
	}
	return deps
}

// sqliteDataPath is providers.sqlite.extra.path, or sqlite-data.db beside the
// service database.
func sqliteDataPath(cfg *platformconfig.Config) string {
	def := filepath.Join(filepath.Dir(cfg.Database.Path), "sqlite-data.db")
	return cfg.Provider("sqlite").Get("path", def)
}

// openSQLiteData opens the sqlite provider's file. It refuses the service
// database so raw SQL never reaches settings or audit tables.
func openSQLiteData(cfg *platformconfig.Config) (*gorm.DB, error) {
	if cfg.Provider("sqlite").Disabled {
		return nil, nil
	}
	path := sqliteDataPath(cfg)
	if filepath.Clean(path) == filepath.Clean(cfg.Database.Path) {
		return nil, platformerrors.New(platformerrors.KindConfig, "sqlite:data", "providers.sqlite.extra.path must not point at database.path")
	}
	return platformstorage.OpenData(path)
}

func initRegistryStep(ctx context.Context, state *appState) error {
	deps := connectDependencies(ctx, state)
	events := state.bus.Async()

	state.builder = providers.NewBuilder(deps, state.logger, events)
	state.closers = append(state.closers, state.builder.Close)
	state.registry = orchestrator.NewRegistry()
	state.orch = orchestrator.New(state.registry,
		orchestrator.WithLogger(state.logger),
		orchestrator.WithPublisher(events),
	)
	state.settings = services.NewSettings(
		state.config,
		platformstorage.NewSettingsRepository(state.db),
		state.builder,
		state.registry,
		state.logger,
	)
	_, err := state.settings.Init(ctx)
	return err
}

func initDispatcherStep(_ context.Context, state *appState) error {
	state.dispatcher = services.NewDispatcher(state.orch, state.settings.Preferences, state.logger, state.bus.Async())
	return nil
}

// close releases everything the init steps acquired, newest first.
func (s *appState) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && s.logger != nil {
			s.logger.WarnTag(logTag, "资源释放失败: %v", err)
		}
	}
	s.closers = nil
}

func authIssuer(cfg *platformconfig.Config) *auth.TokenIssuer {
	if !cfg.Server.Auth.Enabled {
		return nil
	}
	return auth.NewTokenIssuer(cfg.Server.Auth.Secret, cfg.Server.Auth.Issuer)
}

// buildHandler assembles the gin engine: webapi under /api plus the session websocket.
func buildHandler(ctx context.Context, state *appState) (http.Handler, *ws.Router, error) {
	cfg := state.settings.Config()
	issuer := authIssuer(cfg)

	opts := httptransport.Options{Config: cfg, Logger: state.logger}
	if issuer != nil {
		opts.AuthMiddleware = httptransport.AuthMiddleware(issuer)
	}
	router, err := httptransport.Build(opts)
	if err != nil {
		return nil, nil, err
	}

	router.Engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			httptransport.RespondError(c, http.StatusNotFound, "api not found", gin.H{})
			return
		}
		c.Status(http.StatusNotFound)
	})

	webapi, err := httpwebapi.NewService(state.orch, state.settings, state.dispatcher, state.logger)
	if err != nil {
		return nil, nil, platformerrors.Wrap(platformerrors.KindTransport, "webapi:new-service", "failed to create webapi service", err)
	}
	if err := webapi.Register(ctx, router); err != nil {
		return nil, nil, err
	}

	wsOpts := ws.RouterOptions{BaseContext: ctx}
	if issuer != nil {
		wsOpts.Authorize = func(r *http.Request) error {
			token := r.URL.Query().Get("token")
			if token == "" {
				token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			_, err := issuer.Verify(token)
			return err
		}
	}
	wsRouter := ws.NewRouter(ws.NewHub(state.logger), state.logger, wsOpts)
	wsRouter.SetHandlerBuilder(ws.ToolHandlerBuilder(state.dispatcher))
	path := cfg.Web.SessionPath
	if path == "" {
		path = "/ws/session"
	}
	router.Engine.GET(path, gin.WrapF(wsRouter.Handle))

	return router.Engine, wsRouter, nil
}

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	handler, wsRouter, err := buildHandler(groupCtx, state)
	if err != nil {
		return fmt.Errorf("启动 HTTP 服务失败: %w", err)
	}

	cfg := state.config
	addr := net.JoinHostPort(cfg.Server.IP, strconv.Itoa(cfg.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger := state.logger

	g.Go(func() error {
		logger.InfoTag("HTTP", "Gin 服务已启动，访问地址 http://%s", addr)
		go func() {
			<-groupCtx.Done()
			wsRouter.Shutdown()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP 服务关闭失败: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP 服务已优雅关闭")
			}
		}()
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP 服务启动失败: %v", err)
			return err
		}
		return nil
	})

	memories := platformstorage.NewMemoryRepository(state.db)
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				sweep(groupCtx, logger, memories, wsRouter)
			}
		}
	})
	return nil
}

// sweep purges expired sqlite-memory rows and idle websocket sessions.
func sweep(ctx context.Context, logger platformlogging.Interface, memories *platformstorage.MemoryRepository, wsRouter *ws.Router) {
	if n, err := memories.PurgeExpired(ctx); err != nil {
		logger.WarnTag(logTag, "清理过期记忆失败: %v", err)
	} else if n > 0 {
		logger.DebugTag(logTag, "清理过期记忆 %d 条", n)
	}
	if n := wsRouter.CloseIdle(sessionIdleTTL); n > 0 {
		logger.InfoTag("WebSocket", "关闭空闲会话 %d 个", n)
	}
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, logger *platformlogging.Logger, g *errgroup.Group) error {
	<-ctx.Done()
	logger.InfoTag(logTag, "收到关闭信号 %v，正在进行资源清理", context.Cause(ctx))
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag(logTag, "服务关闭过程中出现错误: %v", err)
			return err
		}
		logger.InfoTag(logTag, "所有服务已成功关闭")
	case <-time.After(15 * time.Second):
		logger.ErrorTag(logTag, "服务关闭超时，已强制退出")
		return errors.New("shutdown timed out")
	}
	return nil
}
