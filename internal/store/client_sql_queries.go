package store

const (
	getRecord = `SELECT id, updated_at, deleted, data
		FROM records
		WHERE tbl = ? AND id = ?;`

	getAllRecords = `SELECT id, updated_at, deleted, data
		FROM records
		WHERE tbl = ?
		ORDER BY id;`

	recordExists = `SELECT EXISTS (SELECT 1 FROM records WHERE tbl = ? AND id = ?);`

	upsertRecord = `INSERT INTO records (tbl, id, updated_at, deleted, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tbl, id) DO UPDATE SET
			updated_at = excluded.updated_at,
			deleted    = excluded.deleted,
			data       = excluded.data;`

	softDeleteRecord = `UPDATE records
		SET deleted = 1, updated_at = ?
		WHERE tbl = ? AND id = ?;`

	appendOutboxEntry = `INSERT INTO outbox (tbl, record_id, op, ts, payload)
		VALUES (?, ?, ?, ?, ?);`

	listOutboxEntries = `SELECT seq, tbl, record_id, op, ts, payload
		FROM outbox
		ORDER BY seq;`

	countOutboxEntries = `SELECT COUNT(*) FROM outbox;`

	clearOutboxEntries = `DELETE FROM outbox;`

	getSyncMeta = `SELECT user_id, username, email, session_token, sync_enabled,
			last_sync_version, last_sync_at, last_error
		FROM sync_meta
		WHERE id = 1;`

	saveSyncMeta = `INSERT INTO sync_meta (id, user_id, username, email, session_token,
			sync_enabled, last_sync_version, last_sync_at, last_error)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id           = excluded.user_id,
			username          = excluded.username,
			email             = excluded.email,
			session_token     = excluded.session_token,
			sync_enabled      = excluded.sync_enabled,
			last_sync_version = excluded.last_sync_version,
			last_sync_at      = excluded.last_sync_at,
			last_error        = excluded.last_error;`

	clearSyncMeta = `DELETE FROM sync_meta WHERE id = 1;`

	putCachedImage = `INSERT INTO image_cache (hash, content_type, size, body)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (hash) DO NOTHING;`

	getCachedImage = `SELECT content_type, size, body
		FROM image_cache
		WHERE hash = ?;`

	cachedImageExists = `SELECT EXISTS (SELECT 1 FROM image_cache WHERE hash = ?);`

	deleteCachedImage = `DELETE FROM image_cache WHERE hash = ?;`
)
