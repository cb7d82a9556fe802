package store

import (
	"context"
	"strings"
)

// ResolveTickerSymbols upper-cases and filters requested symbols down
// to the ones known to the tickers table, preserving the caller's
// order — an ingestion run's --tickers flag can name a symbol that was
// never registered, and that symbol is silently dropped rather than
// failing the whole run.
func (s *Store) ResolveTickerSymbols(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return nil, nil
	}

	normalized := make([]string, len(requested))
	for i, r := range requested {
		normalized[i] = strings.ToUpper(strings.TrimSpace(r))
	}

	rows, err := s.db.Query(ctx, `SELECT symbol FROM tickers WHERE symbol = ANY($1)`, normalized)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	known := map[string]bool{}
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, err
		}
		known[symbol] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(normalized))
	for _, symbol := range normalized {
		if known[symbol] {
			out = append(out, symbol)
		}
	}
	return out, nil
}

// AllTickerSymbols returns every registered symbol, used when an
// ingestion run is not given an explicit --tickers list.
func (s *Store) AllTickerSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT UPPER(TRIM(symbol)) FROM tickers ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, err
		}
		out = append(out, symbol)
	}
	return out, rows.Err()
}

// RegisterTicker ensures a symbol exists in the tickers table, used by
// operator tooling and test fixtures to seed known symbols.
func (s *Store) RegisterTicker(ctx context.Context, symbol string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tickers (symbol) VALUES ($1)
		ON CONFLICT (symbol) DO NOTHING
	`, strings.ToUpper(strings.TrimSpace(symbol)))
	return err
}
