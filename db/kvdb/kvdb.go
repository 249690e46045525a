// Package kvdb is the small bbolt-backed store used for operational
// bookkeeping: rebuild request progress and the last-update timestamp. The
// index itself is persisted separately by the snapshot package.
package kvdb

const (
	// RequestsBucket holds rebuild progress keyed by request ID.
	RequestsBucket = "requests"
	// MetaBucket holds cycle-level bookkeeping such as the last
	// successful update time.
	MetaBucket = "meta"
)

// MetaBucket keys recording the outcome of the last update cycle.
const (
	LastUpdateKey  = "last_update_time"
	LastSkippedKey = "last_skipped_files"
)

type DB interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
	Delete(bucket string, key string) error
	Close() error
}
