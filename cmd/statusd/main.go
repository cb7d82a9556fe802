// Command statusd serves the read-only operator status surface: pool
// health, the latest ingestion run, and per-job lookups.
package main

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinelstream/newspipe/internal/appconfig"
	"github.com/sentinelstream/newspipe/internal/httpapi"
	"github.com/sentinelstream/newspipe/internal/logging"
	"github.com/sentinelstream/newspipe/internal/store"
)

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func main() {
	start := time.Now()
	log := logging.New("statusd")

	cfg, err := appconfig.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("startup_misconfigured")
	}

	log.Info().Str("addr", cfg.HTTPAddr).Msg("startup_begin")

	cpu := runtime.GOMAXPROCS(0)
	maxConns := clamp(cpu*4, 4, 50)
	log.Info().Int("cpu", cpu).Int("max_conns", maxConns).Msg("startup_pool_sizing")

	startCtx, startCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer startCancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("startup_parse_dsn_failed")
	}
	poolCfg.MaxConns = int32(maxConns)
	poolCfg.MinConns = 1
	poolCfg.HealthCheckPeriod = 10 * time.Second
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(startCtx, poolCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup_db_connect_failed")
	}
	defer pool.Close()

	if err := pool.Ping(startCtx); err != nil {
		log.Fatal().Err(err).Msg("startup_db_ping_failed")
	}

	st := store.New(pool)
	if err := st.DetectSchedulingColumn(startCtx); err != nil {
		log.Fatal().Err(err).Msg("startup_detect_scheduling_column_failed")
	}

	h := httpapi.NewHandlers(st)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.Router(h),

		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Dur("startup_time", time.Since(start).Truncate(time.Millisecond)).
		Str("addr", cfg.HTTPAddr).Msg("startup_ready")

	log.Fatal().Err(srv.ListenAndServe()).Msg("statusd_exited")
}
