package store

import (
	"context"

	"github.com/packsync-app/packsync/internal/config"
	"github.com/packsync-app/packsync/internal/logger"
	"github.com/packsync-app/packsync/migrations"
)

// Storages bundles every server-side repository behind one constructor.
type Storages struct {
	DB       *DB
	Accounts AccountRepository
	Records  RecordRepository
	Images   ImageRepository
	Blobs    BlobStorage
}

// NewStorages connects to PostgreSQL, applies migrations, opens the blob
// directory and constructs all server repositories.
func NewStorages(ctx context.Context, cfg config.Storage, log *logger.Logger) (*Storages, error) {
	db, err := NewConnectPostgres(ctx, cfg.DB, log)
	if err != nil {
		return nil, err
	}

	if err = migrations.Migrate(db.DB); err != nil {
		log.Err(err).Str("func", "NewStorages").Msg("error migrating database")
		return nil, err
	}

	blobs, err := NewFileBlobStorage(cfg.Blobs.Dir, log)
	if err != nil {
		return nil, err
	}

	return &Storages{
		DB:       db,
		Accounts: NewAccountRepository(db, log),
		Records:  NewRecordRepository(db, log),
		Images:   NewImageRepository(db, log),
		Blobs:    blobs,
	}, nil
}
