package store

const (
	createMagicLink = `INSERT INTO magic_links (token, email, expires_at)
		VALUES ($1, $2, $3);`

	consumeMagicLink = `UPDATE magic_links
		SET used = true
		WHERE token = $1 AND used = false AND expires_at > now()
		RETURNING email;`

	createAccount = `INSERT INTO accounts (email, username)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET updated_at = now()
		RETURNING user_id, email, username, version, updated_at, created_at;`

	getAccountByID = `SELECT user_id, email, username, version, updated_at, created_at
		FROM accounts
		WHERE user_id = $1;`

	getAccountForUpdate = `SELECT version
		FROM accounts
		WHERE user_id = $1
		FOR UPDATE;`

	bumpAccountVersion = `UPDATE accounts
		SET version = version + 1, updated_at = now()
		WHERE user_id = $1
		RETURNING version;`

	createSession = `INSERT INTO sessions (session_id, user_id, expires_at)
		VALUES ($1, $2, $3);`

	sessionExists = `SELECT EXISTS (
		SELECT 1 FROM sessions WHERE session_id = $1 AND expires_at > now()
	);`

	deleteSession = `DELETE FROM sessions WHERE session_id = $1;`

	purgeExpiredSessions = `DELETE FROM sessions WHERE expires_at <= $1;`

	purgeExpiredMagicLinks = `DELETE FROM magic_links WHERE expires_at <= $1 OR used = true;`

	getServerRecord = `SELECT updated_at, deleted
		FROM records
		WHERE user_id = $1 AND tbl = $2 AND id = $3
		FOR UPDATE;`

	upsertServerRecord = `INSERT INTO records (user_id, tbl, id, updated_at, deleted, data, row_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, tbl, id) DO UPDATE SET
			updated_at  = excluded.updated_at,
			deleted     = excluded.deleted,
			data        = excluded.data,
			row_version = excluded.row_version;`

	tombstoneServerRecord = `INSERT INTO records (user_id, tbl, id, updated_at, deleted, data, row_version)
		VALUES ($1, $2, $3, $4, true, NULL, $5)
		ON CONFLICT (user_id, tbl, id) DO UPDATE SET
			updated_at  = excluded.updated_at,
			deleted     = true,
			row_version = excluded.row_version;`

	saveImage = `INSERT INTO images (hash, content_type, size)
		VALUES ($1, $2, $3)
		ON CONFLICT (hash) DO NOTHING;`

	getImage = `SELECT hash, content_type, size
		FROM images
		WHERE hash = $1;`

	imageExists = `SELECT EXISTS (SELECT 1 FROM images WHERE hash = $1);`

	deleteImage = `DELETE FROM images WHERE hash = $1;`

	deleteImageRefs = `DELETE FROM image_refs
		WHERE user_id = $1 AND tbl = $2 AND record_id = $3;`

	insertImageRef = `INSERT INTO image_refs (user_id, tbl, record_id, hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, tbl, record_id, hash) DO NOTHING;`

	orphanImages = `SELECT i.hash
		FROM images i
		LEFT JOIN image_refs r ON r.hash = i.hash
		WHERE r.hash IS NULL AND i.created_at < $1;`
)
