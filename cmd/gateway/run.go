package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit/recorder"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit/retention"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit/storage"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/cli"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/invoker"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/profile"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/proxy/handlers"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/security/auth"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/security/secrets"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/server"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/telemetry/health"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/telemetry/logging"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/telemetry/metrics"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/transport"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway server",
	Long: `Start the gateway server with the specified configuration.

The server listens on the configured address and proxies Bedrock
invocation requests across the partition boundary.

Examples:
  # Start with default config
  gateway run

  # Start with custom config
  gateway run --config /etc/gateway/config.yaml

  # Override listen address
  gateway run --listen 0.0.0.0:8080

  # Validate config without starting server
  gateway run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Setup(cfg.Telemetry.Logging); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Gateway v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	ctx := context.Background()

	// Secret store: providers are consulted in priority order.
	store, fileProvider, err := buildSecretStore(ctx, cfg.Secrets)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	authorizer := auth.NewAuthorizer(auth.Config{
		SecretName:   cfg.Auth.SecretName,
		CacheTTL:     cfg.Auth.CacheTTL,
		FetchTimeout: cfg.Auth.FetchTimeout,
	}, store)

	resolver := secrets.NewResolver(secrets.ResolverConfig{
		SecretName:   cfg.Credentials.SecretName,
		TTL:          cfg.Credentials.TTL,
		StaleGrace:   cfg.Credentials.StaleGrace,
		FetchTimeout: cfg.Credentials.FetchTimeout,
	}, store)

	// The upstream credential must resolve at startup: a gateway that
	// cannot reach its credential store serves nothing but errors.
	cred, err := resolver.Resolve(ctx)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("startup credential resolution failed: %w", err))
	}
	fmt.Printf("✓ Upstream credential resolved (%s)\n", cred.Kind)

	monitor := transport.NewTunnelMonitor(cfg.Transport)
	monitor.Start(ctx)
	selector := transport.NewSelector(cfg.Transport, monitor)

	profiles, err := buildProfileManager(ctx, cfg.Invoke, cred)
	if err != nil {
		monitor.Stop()
		return cli.NewCommandError("run", err)
	}

	inv := invoker.New(cfg.Invoke, profiles, selector)

	auditStore, err := buildAuditStorage(ctx, cfg.Audit)
	if err != nil {
		monitor.Stop()
		return cli.NewCommandError("run", err)
	}
	fmt.Printf("✓ Audit store initialized (%s)\n", cfg.Audit.Backend)

	rec := recorder.NewRecorder(auditStore, &recorder.Config{
		Buffer:       cfg.Audit.Buffer,
		WriteTimeout: cfg.Audit.WriteTimeout,
	})

	// Scheduled pruning only applies to backends without native TTL.
	var pruner *retention.Pruner
	if cfg.Audit.Backend == "sqlite" && cfg.Audit.SQLite.PruneSchedule != "" {
		pruner = retention.NewPruner(auditStore, &retention.Config{
			RetentionDays: cfg.Audit.RetentionDays,
			PruneSchedule: cfg.Audit.SQLite.PruneSchedule,
		})
		if err := pruner.Start(ctx); err != nil {
			slog.Warn("failed to start retention scheduler", "error", err)
			pruner = nil
		}
	}

	var rm *metrics.RequestMetrics
	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		rm = metrics.NewRequestMetrics(cfg.Telemetry.Metrics, nil)
		metricsHandler = rm.Handler()
	}

	checker := health.New(2 * time.Second)
	checker.RegisterCheck("secret_store", func(ctx context.Context) error {
		// Served from the manager's cache between TTL expiries.
		_, err := store.GetSecret(ctx, cfg.Auth.SecretName)
		return err
	})
	if len(cfg.Transport.TunnelHealthURLs) > 0 {
		checker.RegisterCheck("tunnel", func(ctx context.Context) error {
			if !monitor.Healthy() {
				return fmt.Errorf("tunnel links down")
			}
			return nil
		})
	}
	if cfg.Audit.Backend == "sqlite" {
		checker.RegisterCheck("audit_storage", func(ctx context.Context) error {
			_, err := auditStore.Count(ctx)
			return err
		})
	}

	invokeHandler := handlers.NewInvokeHandler(
		authorizer, resolver, selector, inv, rec, rm, cfg.Server.MaxBodyBytes,
	)

	srv := server.New(cfg.Server, invokeHandler, checker, metricsHandler, server.BuildInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
	})

	srv.RegisterCloser("audit_recorder", func(ctx context.Context) error {
		rec.Close()
		return nil
	})
	if pruner != nil {
		srv.RegisterCloser("retention_scheduler", func(ctx context.Context) error {
			pruner.Stop()
			return nil
		})
	}
	srv.RegisterCloser("tunnel_monitor", func(ctx context.Context) error {
		monitor.Stop()
		return nil
	})
	srv.RegisterCloser("audit_storage", func(ctx context.Context) error {
		return auditStore.Close()
	})
	if fileProvider != nil {
		srv.RegisterCloser("secret_file_watcher", func(ctx context.Context) error {
			return fileProvider.Close()
		})
	}

	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

// buildSecretStore assembles the secret providers in priority order:
// Secrets Manager, then the local file, then environment variables.
// The file provider is returned separately so its watcher can be
// closed on shutdown.
func buildSecretStore(ctx context.Context, cfg config.SecretsConfig) (*secrets.Manager, *secrets.FileProvider, error) {
	var providers []secrets.SecretProvider

	if cfg.SecretsManager.Enabled {
		sm, err := secrets.NewSecretsManagerProvider(ctx, cfg.SecretsManager.Region, cfg.SecretsManager.Endpoint)
		if err != nil {
			return nil, nil, fmt.Errorf("secrets manager provider: %w", err)
		}
		providers = append(providers, sm)
	}

	var fileProvider *secrets.FileProvider
	if cfg.File.Enabled {
		fp, err := secrets.NewFileProvider(cfg.File.Path, cfg.File.Watch)
		if err != nil {
			return nil, nil, fmt.Errorf("file provider: %w", err)
		}
		fileProvider = fp
		providers = append(providers, fp)
	}

	providers = append(providers, secrets.NewEnvProvider(cfg.EnvPrefix))

	store := secrets.NewManager(providers, secrets.CacheConfig{
		Enabled: cfg.CacheTTL > 0,
		TTL:     cfg.CacheTTL,
		MaxSize: cfg.CacheMaxSize,
	})
	return store, fileProvider, nil
}

// buildProfileManager creates the inference-profile manager when the
// resolved credential can sign control-plane calls. Bearer-only
// deployments get a disabled manager: profile-scoped models are then
// rejected with a clear error instead of an opaque upstream 400.
func buildProfileManager(ctx context.Context, cfg config.InvokeConfig, cred *secrets.ResolvedCredential) (invoker.ProfileEnsurer, error) {
	if cred.Kind != secrets.KindKeypair {
		if len(cfg.Profile.RequiredPrefixes) > 0 {
			slog.Warn("profile management disabled: bearer credentials cannot sign control-plane calls",
				"required_prefixes", cfg.Profile.RequiredPrefixes)
		}
		return profileDisabled{}, nil
	}

	mgr, err := profile.NewManagerForCredential(ctx, cfg.Profile, cred)
	if err != nil {
		return nil, fmt.Errorf("profile manager: %w", err)
	}
	return mgr, nil
}

type profileDisabled struct{}

func (profileDisabled) RequiresProfile(string) bool { return false }

func (profileDisabled) EnsureProfile(_ context.Context, modelID string) (string, error) {
	return "", &profile.CreationError{ModelID: modelID, Cause: fmt.Errorf("profile management requires keypair credentials")}
}

// buildAuditStorage creates the audit backend named by the config.
func buildAuditStorage(ctx context.Context, cfg config.AuditConfig) (audit.Storage, error) {
	switch cfg.Backend {
	case "dynamodb":
		return storage.NewDynamoDBStorage(ctx, storage.DynamoDBConfig{
			Table:         cfg.DynamoDB.Table,
			Region:        cfg.DynamoDB.Region,
			Endpoint:      cfg.DynamoDB.Endpoint,
			RetentionDays: cfg.RetentionDays,
		})
	case "sqlite":
		sqliteCfg := storage.DefaultSQLiteConfig()
		sqliteCfg.Path = cfg.SQLite.Path
		return storage.NewSQLiteStorage(sqliteCfg)
	case "memory":
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s", cfg.Backend)
	}
}
