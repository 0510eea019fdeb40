package store

import (
	"context"

	"github.com/packsync-app/packsync/internal/config"
	"github.com/packsync-app/packsync/internal/logger"
)

// ClientStorages bundles every client-side repository behind one constructor
// so the engine wiring stays flat.
type ClientStorages struct {
	DB      *DB
	Records LocalRecordRepository
	Outbox  OutboxRepository
	Meta    MetaRepository
	Images  ImageCacheRepository
}

// NewClientStorages opens the local SQLite database, applies migrations and
// constructs all client repositories on top of the shared connection.
func NewClientStorages(ctx context.Context, cfg config.ClientStorage, log *logger.Logger) (*ClientStorages, error) {
	db, err := NewConnectSQLite(ctx, cfg.DB, log)
	if err != nil {
		return nil, err
	}

	return &ClientStorages{
		DB:      db,
		Records: NewLocalRecordRepository(db, log),
		Outbox:  NewOutboxRepository(db, log),
		Meta:    NewMetaRepository(db, log),
		Images:  NewImageCacheRepository(db, log),
	}, nil
}
