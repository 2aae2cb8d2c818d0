package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/sethvargo/go-retry"
)

// Connect opens the Postgres pool and verifies it with bounded exponential
// backoff. Transient startup failures (container races, pool exhaustion) are
// retried here so business logic never sees them; once the attempts are
// exhausted the error is fatal to the caller.
func Connect(ctx context.Context, databaseURL string) (*sql.DB, error) {
	pg, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			log.Printf("Database not ready, retrying: %v", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Keep all date arithmetic on the server consistent with the engine.
	if _, err := pg.ExecContext(ctx, "SET TIME ZONE 'UTC'"); err != nil {
		log.Printf("Failed to set database timezone to UTC: %v", err)
	}

	return pg, nil
}
