package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dshills/ctxpack/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// deltaBatchSize bounds the number of placeholders per CheckDelta query
const deltaBatchSize = 500

// DefaultPath returns the state database location for a project root
func DefaultPath(root string) string {
	return filepath.Join(root, ".ctxpack", "state.db")
}

// SQLiteStorage implements the Store interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state dir: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps one
	// connection alive for :memory: databases
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (creating if needed) the state database at dbPath
// and applies pending migrations. Use ":memory:" for tests.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Timestamps are stored as unix milliseconds
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Session operations

// openSessionWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) openSessionWithQuerier(ctx context.Context, q querier, sessionID, repoFingerprint, language string) (*Session, error) {
	if sessionID == "" {
		return nil, types.ErrEmptySessionID
	}

	query := `
		INSERT INTO sessions (session_id, repo_fingerprint, language, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			last_seen_at = excluded.last_seen_at
	`
	now := toMillis(time.Now())
	if _, err := q.ExecContext(ctx, query, sessionID, repoFingerprint, language, now, now); err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	return s.getSessionWithQuerier(ctx, q, sessionID)
}

// OpenSession creates the session row or reuses an existing one. The
// fingerprint and language of an existing session are left untouched.
func (s *SQLiteStorage) OpenSession(ctx context.Context, sessionID, repoFingerprint, language string) (*Session, error) {
	return s.openSessionWithQuerier(ctx, s.querier(), sessionID, repoFingerprint, language)
}

// getSessionWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getSessionWithQuerier(ctx context.Context, q querier, sessionID string) (*Session, error) {
	query := `
		SELECT session_id, repo_fingerprint, language, created_at, last_seen_at
		FROM sessions
		WHERE session_id = ?
	`
	var sess Session
	var createdAt, lastSeenAt int64
	err := q.QueryRowContext(ctx, query, sessionID).Scan(
		&sess.SessionID, &sess.RepoFingerprint, &sess.Language, &createdAt, &lastSeenAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = fromMillis(createdAt)
	sess.LastSeenAt = fromMillis(lastSeenAt)
	return &sess, nil
}

func (s *SQLiteStorage) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	return s.getSessionWithQuerier(ctx, s.querier(), sessionID)
}

// Delta operations

// checkDeltaWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) checkDeltaWithQuerier(ctx context.Context, q querier, sessionID string, etags map[string]string) (types.DeltaResult, error) {
	if sessionID == "" {
		return types.DeltaResult{}, types.ErrEmptySessionID
	}

	ids := make([]string, 0, len(etags))
	for id := range etags {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	recorded := make(map[string]string, len(ids))
	for start := 0; start < len(ids); start += deltaBatchSize {
		end := min(start+deltaBatchSize, len(ids))
		batch := ids[start:end]

		placeholders := strings.Repeat("?,", len(batch))
		placeholders = placeholders[:len(placeholders)-1]
		query := fmt.Sprintf(`
			SELECT symbol_id, etag
			FROM deliveries
			WHERE session_id = ? AND symbol_id IN (%s)
		`, placeholders)

		args := make([]interface{}, 0, len(batch)+1)
		args = append(args, sessionID)
		for _, id := range batch {
			args = append(args, id)
		}

		if err := scanEtags(ctx, q, query, args, recorded); err != nil {
			return types.DeltaResult{}, fmt.Errorf("failed to check delta: %w", err)
		}
	}

	delta := types.NewDeltaResult()
	for _, id := range ids {
		if prev, ok := recorded[id]; ok && prev == etags[id] {
			delta.Unchanged[id] = struct{}{}
		} else {
			delta.Changed[id] = struct{}{}
		}
	}
	return delta, nil
}

func scanEtags(ctx context.Context, q querier, query string, args []interface{}, into map[string]string) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, etag string
		if err := rows.Scan(&id, &etag); err != nil {
			return err
		}
		into[id] = etag
	}
	return rows.Err()
}

// CheckDelta compares the given etags against the last recorded delivery
// of each symbol. Equal etags are unchanged; everything else, including
// never-delivered symbols, is changed.
func (s *SQLiteStorage) CheckDelta(ctx context.Context, sessionID string, etags map[string]string) (types.DeltaResult, error) {
	return s.checkDeltaWithQuerier(ctx, s.querier(), sessionID, etags)
}

// Delivery operations

// recordDeliveryWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) recordDeliveryWithQuerier(ctx context.Context, q querier, rec *types.DeliveryRecord) error {
	if rec.SessionID == "" {
		return types.ErrEmptySessionID
	}
	if rec.DeliveredAt.IsZero() {
		rec.DeliveredAt = time.Now()
	}

	query := `
		INSERT INTO deliveries (session_id, symbol_id, etag, representation, external_ref, token_estimate, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, symbol_id) DO UPDATE SET
			etag = excluded.etag,
			representation = excluded.representation,
			external_ref = excluded.external_ref,
			token_estimate = excluded.token_estimate,
			delivered_at = excluded.delivered_at
	`
	_, err := q.ExecContext(ctx, query,
		rec.SessionID, rec.SymbolID, rec.ETag, string(rec.Representation),
		rec.ExternalRef, rec.TokenEstimate, toMillis(rec.DeliveredAt))
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}

// RecordDelivery upserts the delivery of one symbol
func (s *SQLiteStorage) RecordDelivery(ctx context.Context, rec *types.DeliveryRecord) error {
	return s.recordDeliveryWithQuerier(ctx, s.querier(), rec)
}

// RecordDeliveriesBatch upserts many deliveries in one transaction
func (s *SQLiteStorage) RecordDeliveriesBatch(ctx context.Context, recs []types.DeliveryRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.RecordDeliveriesBatch(ctx, recs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// getDeliveryWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getDeliveryWithQuerier(ctx context.Context, q querier, sessionID, symbolID string) (*types.DeliveryRecord, error) {
	query := `
		SELECT session_id, symbol_id, etag, representation, external_ref, token_estimate, delivered_at
		FROM deliveries
		WHERE session_id = ? AND symbol_id = ?
	`
	rec, err := scanDelivery(q.QueryRowContext(ctx, query, sessionID, symbolID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStorage) GetDelivery(ctx context.Context, sessionID, symbolID string) (*types.DeliveryRecord, error) {
	return s.getDeliveryWithQuerier(ctx, s.querier(), sessionID, symbolID)
}

// listDeliveriesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listDeliveriesWithQuerier(ctx context.Context, q querier, sessionID string) ([]*types.DeliveryRecord, error) {
	query := `
		SELECT session_id, symbol_id, etag, representation, external_ref, token_estimate, delivered_at
		FROM deliveries
		WHERE session_id = ?
		ORDER BY symbol_id
	`
	rows, err := q.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var recs []*types.DeliveryRecord
	for rows.Next() {
		rec, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ListDeliveries returns every delivery of a session ordered by symbol id
func (s *SQLiteStorage) ListDeliveries(ctx context.Context, sessionID string) ([]*types.DeliveryRecord, error) {
	return s.listDeliveriesWithQuerier(ctx, s.querier(), sessionID)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDelivery(row rowScanner) (*types.DeliveryRecord, error) {
	var rec types.DeliveryRecord
	var rep string
	var deliveredAt int64
	if err := row.Scan(&rec.SessionID, &rec.SymbolID, &rec.ETag, &rep,
		&rec.ExternalRef, &rec.TokenEstimate, &deliveredAt); err != nil {
		return nil, err
	}
	rec.Representation = types.Representation(rep)
	rec.DeliveredAt = fromMillis(deliveredAt)
	return &rec, nil
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

func (t *sqliteTx) OpenSession(ctx context.Context, sessionID, repoFingerprint, language string) (*Session, error) {
	return t.storage.openSessionWithQuerier(ctx, t.querier(), sessionID, repoFingerprint, language)
}

func (t *sqliteTx) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	return t.storage.getSessionWithQuerier(ctx, t.querier(), sessionID)
}

func (t *sqliteTx) CheckDelta(ctx context.Context, sessionID string, etags map[string]string) (types.DeltaResult, error) {
	return t.storage.checkDeltaWithQuerier(ctx, t.querier(), sessionID, etags)
}

func (t *sqliteTx) RecordDelivery(ctx context.Context, rec *types.DeliveryRecord) error {
	return t.storage.recordDeliveryWithQuerier(ctx, t.querier(), rec)
}

func (t *sqliteTx) RecordDeliveriesBatch(ctx context.Context, recs []types.DeliveryRecord) error {
	for i := range recs {
		if err := t.storage.recordDeliveryWithQuerier(ctx, t.querier(), &recs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqliteTx) GetDelivery(ctx context.Context, sessionID, symbolID string) (*types.DeliveryRecord, error) {
	return t.storage.getDeliveryWithQuerier(ctx, t.querier(), sessionID, symbolID)
}

func (t *sqliteTx) ListDeliveries(ctx context.Context, sessionID string) ([]*types.DeliveryRecord, error) {
	return t.storage.listDeliveriesWithQuerier(ctx, t.querier(), sessionID)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
