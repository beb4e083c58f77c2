package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	appservice "github.com/turtacn/entitle/internal/application/service"
	"github.com/turtacn/entitle/internal/config"
	domainservice "github.com/turtacn/entitle/internal/domain/service"
	"github.com/turtacn/entitle/internal/infrastructure/audit"
	"github.com/turtacn/entitle/internal/infrastructure/crypto"
	"github.com/turtacn/entitle/internal/infrastructure/machine"
	"github.com/turtacn/entitle/internal/infrastructure/monitoring"
	"github.com/turtacn/entitle/internal/infrastructure/oauth"
	"github.com/turtacn/entitle/internal/infrastructure/persistence/file"
	"github.com/turtacn/entitle/internal/infrastructure/persistence/memory"
	redisstore "github.com/turtacn/entitle/internal/infrastructure/persistence/redis"
	s3store "github.com/turtacn/entitle/internal/infrastructure/persistence/s3"
	"github.com/turtacn/entitle/internal/infrastructure/persistence/sqlstore"
	"github.com/turtacn/entitle/internal/infrastructure/surface"
	"github.com/turtacn/entitle/internal/infrastructure/transport"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

// app holds the wired services of one command invocation.
type app struct {
	cfg          *config.Config
	log          logger.Logger
	registry     *prometheus.Registry
	tracing      *monitoring.TracingManager
	flow         *appservice.AuthorizationFlow
	session      *appservice.SessionAppService
	entitlements *appservice.EntitlementAppService
	format       constants.ResponseFormat
	token        string
	closers      []func(context.Context) error
}

// newApp loads the configuration and wires every component the commands use.
func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Logger for startup
	startupLogger, _ := monitoring.NewZapLogger(&config.LogConfig{Level: "warn", Format: "console"})
	cfg, err := config.LoadConfig(opts.configPath, startupLogger)
	if err != nil {
		return nil, err
	}

	log, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry(), token: opts.token}

	a.format = cfg.Entitlement.ResponseFormat
	if opts.format != "" {
		a.format = constants.ResponseFormat(opts.format)
		if !a.format.Valid() {
			return nil, errors.ErrInvalidConfiguration("format", "unknown response format "+opts.format)
		}
	}

	a.tracing, err = monitoring.NewTracingManager(cfg.Tracing, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.tracing.Shutdown)

	metrics := monitoring.NewMetricsAdapter(monitoring.NewMetrics(a.registry))

	store, err := a.openBlobStore(ctx)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	pending, err := a.openPendingRepository()
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	keys, err := crypto.NewKeySource(cfg.OAuth, cfg.Vault, log)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	publisher := audit.NewPublisher(cfg.Audit, log)
	a.closers = append(a.closers, func(context.Context) error { return publisher.Close() })

	httpTransport := transport.NewHTTPTransport(nil, cfg.Entitlement.Timeout, a.tracing.Tracer(), log)

	var variant domainservice.GrantVariant
	switch cfg.OAuth.Grant {
	case constants.GrantImplicit:
		variant = domainservice.NewImplicitGrant()
	default:
		variant = domainservice.NewAuthorizationCodeGrant(oauth.NewTokenExchanger(cfg.OAuth, nil, metrics, a.tracing.Tracer(), log))
	}

	a.flow = appservice.NewAuthorizationFlow(cfg.OAuth, variant, a.surfaceProvider(cmd.InOrStdin(), cmd.ErrOrStderr()), metrics, a.tracing.Tracer(), log)
	a.closers = append(a.closers, func(context.Context) error { return a.flow.Close() })

	a.session = appservice.NewSessionAppService(cfg.OAuth, a.flow, store, httpTransport, log)
	a.entitlements = appservice.NewEntitlementAppService(
		cfg.Entitlement,
		httpTransport,
		domainservice.NewDecisionCodec(crypto.NewJWTVerifier()),
		keys,
		machine.NewIdentifier(store, log),
		pending,
		publisher,
		metrics,
		a.tracing.Tracer(),
		log,
	)
	return a, nil
}

func (a *app) openBlobStore(ctx context.Context) (domainservice.BlobStore, error) {
	switch a.cfg.Storage.Driver {
	case "redis":
		client, err := redisstore.NewClient(ctx, a.cfg.Storage.Redis, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		return redisstore.NewBlobStore(client, a.cfg.Storage.Redis.KeyPrefix, a.log), nil
	case "s3":
		return s3store.NewBlobStore(a.cfg.Storage.S3, a.log)
	case "memory":
		return memory.NewBlobStore(), nil
	default:
		return file.NewBlobStore(a.cfg.Storage.File.Dir, a.log)
	}
}

func (a *app) openPendingRepository() (domainservice.PendingReleaseRepository, error) {
	if a.cfg.Pending.Driver == "memory" {
		return memory.NewPendingReleaseRepository(), nil
	}
	db, err := sqlstore.Open(a.cfg.Pending)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	return sqlstore.NewPendingReleaseRepository(db), nil
}

func (a *app) surfaceProvider(in io.Reader, prompt io.Writer) domainservice.SurfaceProvider {
	if a.cfg.Surface.Mode == "paste" {
		return surface.NewPasteProvider(in, prompt)
	}
	return surface.NewLoopbackProvider(a.cfg.OAuth.RedirectURI, a.cfg.Surface, surface.OpenBrowser, prompt, a.log)
}

// bearer returns the access token for entitlement requests: the --token flag,
// else the stored sign-on.
func (a *app) bearer(ctx context.Context) (string, error) {
	if a.token != "" {
		return a.token, nil
	}
	auth, err := a.session.Current(ctx)
	if errors.IsNotFoundError(err) {
		return "", fmt.Errorf("not signed in, run `entitle login` first")
	}
	if err != nil {
		return "", err
	}
	if auth.IsExpired(time.Now()) {
		return "", fmt.Errorf("the stored sign-on expired at %s, run `entitle login` again", auth.ExpiresAt.Format(time.RFC3339))
	}
	return auth.AccessToken, nil
}

// close writes the metrics textfile and releases every opened resource.
func (a *app) close(ctx context.Context) {
	if path := a.cfg.Metrics.TextfilePath; path != "" {
		if err := monitoring.WriteTextfile(path, a.registry); err != nil {
			a.log.Warn(ctx, "Failed to write metrics textfile", logger.String("path", path), logger.Any("error", err.Error()))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Warn(ctx, "Failed to close resource", logger.Any("error", err.Error()))
		}
	}
}

// run wires the app, calls fn and tears the app down again.
func run(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	defer a.close(context.WithoutCancel(ctx))
	return fn(ctx, a)
}
