package storage

import (
	"context"
	"time"

	"github.com/dshills/ctxpack/pkg/types"
)

// Store persists per-session delivery history for delta-first packing
type Store interface {
	// Session operations
	OpenSession(ctx context.Context, sessionID, repoFingerprint, language string) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// Delta operations
	CheckDelta(ctx context.Context, sessionID string, etags map[string]string) (types.DeltaResult, error)

	// Delivery operations
	RecordDelivery(ctx context.Context, rec *types.DeliveryRecord) error
	RecordDeliveriesBatch(ctx context.Context, recs []types.DeliveryRecord) error
	GetDelivery(ctx context.Context, sessionID, symbolID string) (*types.DeliveryRecord, error)
	ListDeliveries(ctx context.Context, sessionID string) ([]*types.DeliveryRecord, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Store // Embed Store interface for transaction operations
}

// Session is one agent conversation. Sessions are never invalidated
// automatically when the repository fingerprint changes; stale etags
// simply stop matching.
type Session struct {
	SessionID       string
	RepoFingerprint string
	Language        string
	CreatedAt       time.Time
	LastSeenAt      time.Time
}
