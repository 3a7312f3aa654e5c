package gtfsdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver, registered as "pgx"
	_ "github.com/mattn/go-sqlite3"    // CGo-based SQLite driver, registered as "sqlite3"
	_ "modernc.org/sqlite"             // pure Go SQLite driver, registered as "sqlite"

	"shiftplanner.ebus.dev/internal/logging"
)

// Client is the main entry point for the library
type Client struct {
	config        Config
	DB            *sql.DB
	Queries       *Queries
	importRuntime time.Duration
}

// NewClient opens the configured database and applies the schema.
func NewClient(config Config) (*Client, error) {
	db, err := createDB(config)
	if err != nil {
		return nil, fmt.Errorf("unable to create DB: %w", err)
	} else if config.verbose {
		logging.LogOperation(slog.Default().With(slog.String("component", "gtfsdb")),
			"tables_created",
			slog.String("driver", config.Driver))
	}

	client := &Client{
		config:  config,
		DB:      db,
		Queries: NewWithDialect(db, config.dialect()),
	}
	return client, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// ImportRuntime reports how long the last GTFS import took.
func (c *Client) ImportRuntime() time.Duration {
	return c.importRuntime
}

// WithTransaction runs fn inside one transaction. fn's error, or a panic,
// rolls the transaction back.
func (c *Client) WithTransaction(ctx context.Context, fn func(q *Queries) error) error {
	logger := slog.Default().With(slog.String("component", "gtfsdb"))

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer logging.SafeRollbackWithLogging(tx, logger, "with_transaction")

	if err := fn(c.Queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DownloadAndStore downloads GTFS data from the given URL and stores it in the database
func (c *Client) DownloadAndStore(ctx context.Context, url, authHeaderKey, authHeaderValue string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	if authHeaderKey != "" && authHeaderValue != "" {
		req.Header.Set(authHeaderKey, authHeaderValue)
	}

	client := &http.Client{
		Timeout: 5 * time.Minute,
		Transport: &http.Transport{
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		}}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("static GTFS download returned status %d", resp.StatusCode)
	}

	const maxBodySize = 200 * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(body)) > maxBodySize {
		return fmt.Errorf("static GTFS response exceeds size limit of %d bytes", maxBodySize)
	}

	return c.processAndStoreGTFSDataWithSource(ctx, body, url)
}

// ImportFromFile imports GTFS data from a local zip file into the database
func (c *Client) ImportFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return c.processAndStoreGTFSDataWithSource(ctx, data, path)
}
