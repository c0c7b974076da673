package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/folio/internal/config"
	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/MarcoPoloResearchLab/folio/internal/database"
	"github.com/MarcoPoloResearchLab/folio/internal/editor"
	"github.com/MarcoPoloResearchLab/folio/internal/imaging"
	"github.com/MarcoPoloResearchLab/folio/internal/logging"
	"github.com/MarcoPoloResearchLab/folio/internal/metrics"
	"github.com/MarcoPoloResearchLab/folio/internal/page"
	"github.com/MarcoPoloResearchLab/folio/internal/relay"
	"github.com/MarcoPoloResearchLab/folio/internal/server"
	"github.com/MarcoPoloResearchLab/folio/internal/storage"
	"github.com/MarcoPoloResearchLab/folio/internal/uploads"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "folio-api",
		Short: "Portfolio site with inline content editing",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newPushCommand(), newPullCommand(), newLocalStorageCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite database path")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	flags.String("static-dir", defaults.GetString("site.static_dir"), "Directory served under /assets")
	flags.String("skeleton-path", defaults.GetString("site.skeleton_path"), "Page skeleton HTML (embedded default when empty)")
	flags.String("uploads-dir", defaults.GetString("uploads.dir"), "Directory for uploaded images")
	flags.String("editor-storage", defaults.GetString("editor.storage"), "Editor persistence (service, local)")
	flags.Bool("editor-downscale", defaults.GetBool("editor.downscale"), "Downscale editor images into embedded JPEG data URIs")
	flags.String("local-driver", defaults.GetString("local.driver"), "Local storage backend (sqlite, redis, memory)")
	flags.Int64("local-quota-bytes", defaults.GetInt64("local.quota_bytes"), "Local storage quota in bytes")
	flags.String("redis-address", defaults.GetString("redis.address"), "Redis address for the redis driver")
	flags.String("relay-endpoint", defaults.GetString("relay.endpoint"), "Contact form relay endpoint")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "site.static_dir", "static-dir")
	bindFlag(cmd, "site.skeleton_path", "skeleton-path")
	bindFlag(cmd, "uploads.dir", "uploads-dir")
	bindFlag(cmd, "editor.storage", "editor-storage")
	bindFlag(cmd, "editor.downscale", "editor-downscale")
	bindFlag(cmd, "local.driver", "local-driver")
	bindFlag(cmd, "local.quota_bytes", "local-quota-bytes")
	bindFlag(cmd, "redis.address", "redis-address")
	bindFlag(cmd, "relay.endpoint", "relay-endpoint")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	contentService, err := content.NewService(content.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: content.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	kv, closeKV, err := openKeyValueStore(ctx, appConfig, db, logger)
	if err != nil {
		return err
	}
	defer closeKV()

	localAdapter, err := storage.NewLocalAdapter(storage.LocalConfig{
		Store:      kv,
		Key:        appConfig.LocalKey,
		QuotaBytes: appConfig.LocalQuotaBytes,
		Clock:      time.Now,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	uploadStore, err := uploads.NewStore(uploads.Config{
		Fs:       afero.NewOsFs(),
		Dir:      appConfig.UploadsDir,
		MaxBytes: appConfig.UploadMaxBytes,
		MaxFiles: appConfig.UploadMaxFiles,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	relayClient, err := relay.NewClient(relay.Config{Endpoint: appConfig.RelayEndpoint, Logger: logger})
	if err != nil {
		return err
	}

	skeleton := page.DefaultSkeleton()
	if appConfig.SkeletonPath != "" {
		skeleton, err = page.LoadSkeleton(appConfig.SkeletonPath)
		if err != nil {
			return err
		}
	}

	registry := metrics.New()

	var editorStorage storage.Adapter = contentService
	if appConfig.EditorStorage == config.StorageLocal {
		editorStorage = localAdapter
	}
	var images editor.ImageSink = uploadStore
	if appConfig.EditorDownscale {
		images = imaging.NewIngestor(imaging.DefaultConfig())
	}

	siteEditor, err := editor.New(editor.Config{
		Skeleton: skeleton,
		Storage:  editorStorage,
		Images:   images,
		Recorder: registry,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if _, found, err := siteEditor.Load(ctx); err != nil {
		logger.Warn("stored content not restored", zap.Error(err))
	} else if found {
		logger.Info("stored content restored", zap.String("storage", appConfig.EditorStorage))
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Editor:         siteEditor,
		Uploads:        uploadStore,
		ContentService: contentService,
		LocalStorage:   localAdapter,
		Relay:          relayClient,
		Metrics:        registry,
		Events:         server.NewEventDispatcher(),
		StaticDir:      appConfig.StaticDir,
		Clock:          time.Now,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("editor_storage", appConfig.EditorStorage),
			zap.String("local_driver", appConfig.LocalDriver),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
