package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MarcoPoloResearchLab/folio/internal/config"
	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/MarcoPoloResearchLab/folio/internal/database"
	"github.com/MarcoPoloResearchLab/folio/internal/kvstore"
	"github.com/MarcoPoloResearchLab/folio/internal/logging"
	"github.com/MarcoPoloResearchLab/folio/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultRemoteBaseURL = "http://localhost:3000"

func newPushCommand() *cobra.Command {
	var baseURL, file string
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Send a content document to a running folio server",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			doc, err := content.DecodeDocument(payload)
			if err != nil {
				return fmt.Errorf("decode document: %w", err)
			}
			adapter, err := storage.NewRemoteAdapter(storage.RemoteConfig{BaseURL: baseURL})
			if err != nil {
				return err
			}
			receipt, err := adapter.Save(cmd.Context(), doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved at %s\n", receipt.Timestamp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", defaultRemoteBaseURL, "Base URL of the folio server")
	cmd.Flags().StringVar(&file, "file", "-", "Document to send (- reads stdin)")
	return cmd
}

func newPullCommand() *cobra.Command {
	var baseURL, file string
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Fetch the saved content document from a running folio server",
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := storage.NewRemoteAdapter(storage.RemoteConfig{BaseURL: baseURL})
			if err != nil {
				return err
			}
			doc, err := adapter.Load(cmd.Context())
			if err != nil {
				return err
			}
			if doc == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "no saved content found")
				return nil
			}
			payload, err := content.EncodeDocument(*doc)
			if err != nil {
				return err
			}
			return writePayload(cmd.OutOrStdout(), file, payload)
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", defaultRemoteBaseURL, "Base URL of the folio server")
	cmd.Flags().StringVar(&file, "file", "-", "Destination file (- writes stdout)")
	return cmd
}

func newLocalStorageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local-storage",
		Short: "Inspect or clear the bounded local content store",
	}

	usage := &cobra.Command{
		Use:   "usage",
		Short: "Report local storage usage against the quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocalAdapter(cmd.Context(), func(adapter *storage.LocalAdapter) error {
				report, err := adapter.Usage(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "used %d of %d bytes (document %d bytes)\n",
					report.UsedBytes, report.QuotaBytes, report.DocumentBytes)
				if report.NearLimit {
					fmt.Fprintf(cmd.OutOrStdout(), "warning: usage is above %d bytes\n", report.WarningBytes)
				}
				return nil
			})
		},
	}

	var confirmed bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the locally stored document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocalAdapter(cmd.Context(), func(adapter *storage.LocalAdapter) error {
				if err := adapter.Clear(cmd.Context(), confirmed); err != nil {
					if errors.Is(err, storage.ErrClearNotConfirmed) {
						return fmt.Errorf("%w (pass --yes)", err)
					}
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "local storage cleared")
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm deletion")

	cmd.AddCommand(usage, clearCmd)
	return cmd
}

func withLocalAdapter(ctx context.Context, run func(*storage.LocalAdapter) error) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	var db *gorm.DB
	if appConfig.LocalDriver == config.DriverSQLite {
		db, err = database.OpenSQLite(appConfig.DatabasePath, logger)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()
	}

	kv, closeKV, err := openKeyValueStore(ctx, appConfig, db, logger)
	if err != nil {
		return err
	}
	defer closeKV()

	adapter, err := storage.NewLocalAdapter(storage.LocalConfig{
		Store:      kv,
		Key:        appConfig.LocalKey,
		QuotaBytes: appConfig.LocalQuotaBytes,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	return run(adapter)
}

// openKeyValueStore builds the configured local storage backend.
func openKeyValueStore(ctx context.Context, appConfig config.AppConfig, db *gorm.DB, logger *zap.Logger) (kvstore.Store, func(), error) {
	driver, err := kvstore.ParseDriver(appConfig.LocalDriver)
	if err != nil {
		return nil, nil, err
	}
	switch driver {
	case kvstore.DriverRedis:
		client := redis.NewClient(&redis.Options{Addr: appConfig.RedisAddress})
		store := kvstore.NewRedis(client, kvstore.DefaultRedisPrefix)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", appConfig.RedisAddress, err)
		}
		logger.Info("local storage backend ready", zap.String("driver", string(driver)), zap.String("address", appConfig.RedisAddress))
		return store, func() { _ = client.Close() }, nil
	case kvstore.DriverMemory:
		logger.Warn("local storage backend is in-memory; content is lost on restart")
		return kvstore.NewMemory(), func() {}, nil
	default:
		if db == nil {
			return nil, nil, errors.New("sqlite local storage requires a database")
		}
		return kvstore.NewSQL(db, time.Now), func() {}, nil
	}
}

func readPayload(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

func writePayload(stdout io.Writer, file string, payload []byte) error {
	if file == "" || file == "-" {
		_, err := stdout.Write(append(payload, '\n'))
		return err
	}
	return os.WriteFile(file, payload, 0o644)
}
