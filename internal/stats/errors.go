package stats

import "fmt"

// EntryError reports an entry that could not be folded. The entry is skipped and the
// recompute continues.
type EntryError struct {
	EntryID string
	MediaID string
	Err     error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %s (media %s): %v", e.EntryID, e.MediaID, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// PersistError reports a failed write of a user's rollups. The write is
// transactional, so the previous rollups are still in place.
type PersistError struct {
	UserID string
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist stats for user %s: %v", e.UserID, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
