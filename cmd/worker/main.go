// Command worker runs the job-claim loop: lease pending analysis jobs,
// dispatch each to C9's LLM orchestrator, and record the outcome.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/sentinelstream/newspipe/internal/appconfig"
	"github.com/sentinelstream/newspipe/internal/domain"
	"github.com/sentinelstream/newspipe/internal/llm"
	"github.com/sentinelstream/newspipe/internal/llmprovider"
	"github.com/sentinelstream/newspipe/internal/logging"
	"github.com/sentinelstream/newspipe/internal/store"
	"github.com/sentinelstream/newspipe/internal/worker"
)

var (
	flagPollIntervalSeconds int
	flagBatchSize           int
	flagOnce                bool
	flagWorkerID            string
)

func main() {
	root := &cobra.Command{
		Use:           "worker",
		Short:         "Claim and process pending analysis jobs",
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultWorkerID := fmt.Sprintf("%s:%d", hostname(), os.Getpid())
	root.Flags().IntVar(&flagPollIntervalSeconds, "poll-interval", 10, "seconds to wait between empty claim attempts")
	root.Flags().IntVar(&flagBatchSize, "batch-size", 1, "max jobs to claim per poll")
	root.Flags().BoolVar(&flagOnce, "once", false, "process one batch then exit, instead of polling forever")
	root.Flags().StringVar(&flagWorkerID, "worker-id", defaultWorkerID, "identifier recorded on leased jobs")

	if err := root.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		var misconfig *appconfig.MissingEnvError
		if errors.As(err, &misconfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return h
}

func run(cmd *cobra.Command, args []string) error {
	log := logging.New("worker")

	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("poll-interval") {
		flagPollIntervalSeconds = cfg.WorkerPollSeconds
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	s := store.New(pool)
	if err := s.DetectSchedulingColumn(ctx); err != nil {
		return fmt.Errorf("detect scheduling column: %w", err)
	}

	buildClient := func() (*llm.Client, error) {
		provider, err := buildProvider(cfg)
		if err != nil {
			return nil, err
		}
		return llm.NewClient(provider, cfg.LLMTimeoutSeconds, cfg.LLMMaxRetries, log), nil
	}

	dispatch := map[string]worker.Handler{
		"llm_analysis": func(ctx context.Context, job domain.AnalysisJob) error {
			outcome, err := llm.AnalyzeNewsEvent(ctx, s, buildClient, "gemini", cfg.GeminiModel, job.NewsEventID)
			if err != nil {
				return err
			}
			if !outcome.Succeeded {
				return errors.New(outcome.ErrorMessage)
			}
			return nil
		},
	}

	w := worker.New(s, dispatch, worker.Config{
		WorkerID:          flagWorkerID,
		PollInterval:      time.Duration(flagPollIntervalSeconds) * time.Second,
		BatchSize:         flagBatchSize,
		VisibilityTimeout: time.Duration(cfg.WorkerVisibilityTimeoutSeconds) * time.Second,
		MaxAttempts:       cfg.WorkerMaxAttempts,
	}, log)

	log.Info().Str("worker_id", flagWorkerID).Bool("once", flagOnce).Msg("worker_starting")
	return w.Run(ctx, flagOnce)
}

func buildProvider(cfg appconfig.Config) (llmprovider.Provider, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, &appconfig.MissingEnvError{Names: []string{"OPENAI_API_KEY"}}
		}
		return llmprovider.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	default:
		if cfg.GoogleAPIKey == "" {
			return nil, &appconfig.MissingEnvError{Names: []string{"GOOGLE_API_KEY"}}
		}
		return llmprovider.NewGeminiProvider(cfg.GoogleAPIKey, cfg.GeminiModel), nil
	}
}
