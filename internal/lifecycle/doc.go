// Package lifecycle provides the keyed in-memory mirror shared by the
// deposit and auction managers.
//
// A Store owns every entity it holds. Callers only ever see value
// snapshots: Read, List and All copy out of the store, and Update runs the
// caller's mutation against a working copy that is committed only when the
// mutation succeeds. Entity types with pointer fields must replace those
// fields on update rather than mutate the pointee.
//
// CONCURRENCY:
//
// Operations on the same key are serialized by a per-entry mutex.
// Operations on distinct keys proceed concurrently; the key map itself is
// guarded by a read/write lock that is never held while a mutation runs.
//
// ERRORS:
//
// All failures are *Error values carrying a Code. They match the sentinels
// ErrNotFound, ErrAlreadyExists and ErrInvalidTransition through errors.Is.
package lifecycle
