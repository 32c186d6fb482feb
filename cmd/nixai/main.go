package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/nixai/internal/config"
	"github.com/xxxsen/nixai/internal/handler"
	"github.com/xxxsen/nixai/internal/ingest"
	"github.com/xxxsen/nixai/internal/job"
	"github.com/xxxsen/nixai/internal/middleware"
	"github.com/xxxsen/nixai/internal/pkg/password"
	"github.com/xxxsen/nixai/internal/schedule"
	"github.com/xxxsen/nixai/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "nixai",
		Short: "nixai document question answering service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run nixai server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(a)
		},
	}

	var ingestUser, ingestFile string
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "ingest a local file into a user's index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ingestUser == "" || ingestFile == "" {
				return fmt.Errorf("--user and --file are required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()
			f, err := os.Open(ingestFile)
			if err != nil {
				return err
			}
			defer f.Close()
			st, err := f.Stat()
			if err != nil {
				return err
			}
			docs := service.NewDocumentService(a.files, a.meta, a.pipeline, nil)
			m, err := docs.IngestNow(cmd.Context(), ingestUser, ingestFile, f, st.Size())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks, index size %d\n", m.Filename, m.ChunkCount, m.IndexSize)
			return nil
		},
	}
	ingestCmd.Flags().StringVar(&ingestUser, "user", "", "owner user id")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "path of a .pdf, .txt or .md file")

	var askUser string
	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "ask a question against a user's documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if askUser == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()
			qa := service.NewQAService(a.engine, a.history)
			res, err := qa.Ask(cmd.Context(), askUser, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Answer)
			for _, src := range res.Sources {
				fmt.Fprintf(out, "  [%s] %s\n", src.Filename, truncate(src.Content, 120))
			}
			return nil
		},
	}
	askCmd.Flags().StringVar(&askUser, "user", "", "user id")

	hashCmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "print the bcrypt hash for a users[].password_hash entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := password.Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, ingestCmd, askCmd, hashCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func runServer(a *app) error {
	cfg := a.cfg
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("index", cfg.Index.Type),
		zap.String("metadata", cfg.Metadata.Type),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("embed_provider", cfg.AI.EmbedProvider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := ingest.NewWorker(a.pipeline, ingest.WorkerConfig{Workers: cfg.Ingest.Workers, QueueSize: cfg.Ingest.QueueSize})
	worker.Start(ctx)
	defer worker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-worker.Errors():
				logutil.GetLogger(ctx).Warn("background ingestion failed", zap.Error(err))
			}
		}
	}()

	scheduler := schedule.NewCronScheduler()
	cleanup := job.NewUploadCleanupJob(a.meta, a.pipeline, time.Duration(cfg.Cleanup.MaxAgeHours)*time.Hour)
	if err := scheduler.AddJob(cleanup, cfg.Cleanup.Spec); err != nil {
		return fmt.Errorf("schedule %s: %w", cleanup.Name(), err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	authService := service.NewAuthService(cfg.Users, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	documentService := service.NewDocumentService(a.files, a.meta, a.pipeline, worker)
	qaService := service.NewQAService(a.engine, a.history)

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(authService),
		Documents: handler.NewDocumentHandler(documentService),
		Files:     handler.NewFileHandler(documentService, cfg.UploadMaxBytes),
		Ask:       handler.NewAskHandler(qaService),
		JWTSecret: []byte(cfg.JWTSecret),
		RateLimit: time.Duration(cfg.RateLimitMs) * time.Millisecond,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping, draining ingestion queue...")
	return nil
}

func truncate(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
