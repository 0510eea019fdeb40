package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrUnknownTable is returned when an operation names a table outside the
	// fixed set of synchronized tables.
	ErrUnknownTable = errors.New("unknown sync table")

	// ErrRecordNotFound is returned when a query targets a record (identified
	// by table and id) that does not exist.
	ErrRecordNotFound = errors.New("record was not found")

	// ErrMetaNotFound is returned when the local database holds no sync
	// metadata row, i.e. the client has never signed in on this device.
	ErrMetaNotFound = errors.New("sync metadata not found")

	// ErrImageNotFound is returned when a queried image hash is unknown to
	// the store, either in the metadata table or the blob directory.
	ErrImageNotFound = errors.New("image was not found")

	// ErrAccountNotFound is returned when a query expected to match an
	// account produces an empty result set.
	ErrAccountNotFound = errors.New("account was not found")

	// ErrMagicLinkInvalid is returned when a magic-link token is unknown,
	// already consumed, or past its expiry.
	ErrMagicLinkInvalid = errors.New("magic link is invalid or expired")

	// ErrSessionNotFound is returned when a session id is unknown or expired.
	ErrSessionNotFound = errors.New("session was not found")
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails (e.g. invalid argument count or unsupported type).
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrScanningRow is returned when copying column values of a single
	// result row into Go variables fails.
	ErrScanningRow = errors.New("error scanning row")

	// ErrScanningRows is returned when an error is detected after iterating
	// over a multi-row result set.
	ErrScanningRows = errors.New("error scanning rows")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing an open transaction
	// fails. The transaction is considered rolled back at this point.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to executing statement")
)
