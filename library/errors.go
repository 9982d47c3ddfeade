package library

import "errors"

// Failure reasons reported by Library operations. Callers compare with errors.Is
// and show err.Error() to the user.
var (
	ErrDuplicateID         = errors.New("duplicate id")
	ErrMemberNotFound      = errors.New("member not found")
	ErrBookNotFound        = errors.New("book not found")
	ErrLibrarianNotFound   = errors.New("librarian not found")
	ErrBookNotAvailable    = errors.New("book not available")
	ErrNoActiveTransaction = errors.New("no active transaction found")
	ErrTransactionNotFound = errors.New("transaction not found")

	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)
