// Command ingest runs one ingestion attempt: acquire the advisory lock,
// fetch recent news per ticker from Finnhub, normalize into news events,
// and publish LLM analysis jobs.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/sentinelstream/newspipe/internal/appconfig"
	"github.com/sentinelstream/newspipe/internal/ingest"
	"github.com/sentinelstream/newspipe/internal/logging"
	"github.com/sentinelstream/newspipe/internal/store"
	"github.com/sentinelstream/newspipe/internal/upstream"
)

// Exit codes per spec.md §6.
const (
	exitOK             = 0
	exitRunFailed      = 1
	exitMisconfigured  = 2
)

var (
	flagTickers      []string
	flagMinutesBack  int
	flagProcessLimit int
	flagReplayOnly   bool
)

func main() {
	root := &cobra.Command{
		Use:           "ingest",
		Short:         "Fetch and normalize recent financial news, publishing analysis jobs",
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Flags().StringSliceVar(&flagTickers, "tickers", nil, "ticker symbols to ingest (default: all registered tickers)")
	root.Flags().IntVar(&flagMinutesBack, "minutes-back", 60, "width of the fetch window, in minutes")
	root.Flags().IntVar(&flagProcessLimit, "process-limit", 200, "max raw items to normalize this run")
	root.Flags().BoolVar(&flagReplayOnly, "replay-only", false, "skip the upstream fetch; only normalize existing raw rows")

	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	var misconfig *appconfig.MissingEnvError
	if ok := asMissingEnv(err, &misconfig); ok {
		return exitMisconfigured
	}
	return exitRunFailed
}

func asMissingEnv(err error, target **appconfig.MissingEnvError) bool {
	if me, ok := err.(*appconfig.MissingEnvError); ok {
		*target = me
		return true
	}
	return false
}

func run(cmd *cobra.Command, args []string) error {
	log := logging.New("ingest")

	cfg, err := appconfig.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	if cfg.FinnhubToken == "" && !flagReplayOnly {
		err := &appconfig.MissingEnvError{Names: []string{"FINNHUB_TOKEN"}}
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

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

	var finnhub *upstream.FinnhubClient
	if !flagReplayOnly {
		finnhub = upstream.NewFinnhubClient(cfg.FinnhubToken, log)
	}

	orch := ingest.New(s, finnhub, cfg.IntakeLatestPerRunPerTicker, cfg.IntakeDailyMaxPerTicker, log)

	summary, err := orch.Run(ctx, ingest.Options{
		RequestedTickers: flagTickers,
		MinutesBack:      flagMinutesBack,
		ProcessLimit:     flagProcessLimit,
		ReplayOnly:       flagReplayOnly,
	})
	if err != nil {
		log.Error().Err(err).Msg("ingestion_run_failed")
		return err
	}
	if !summary.LockAcquired {
		log.Info().Msg("ingestion_lock_held_elsewhere")
		return nil
	}

	log.Info().Int64("run_id", summary.RunID).Msg("ingestion_run_complete")
	return nil
}
