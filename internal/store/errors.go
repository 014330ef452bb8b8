package store

import "errors"

// Sentinel errors surfaced by the snapshot store, per spec §7's error
// taxonomy (configuration / state-machine errors are caller-visible,
// never wrapped into an opaque failure).
var (
	ErrNotFound           = errors.New("store: entity not found")
	ErrInvalidTransition  = errors.New("store: invalid snapshot state transition")
	ErrInvalidChangeset   = errors.New("store: invalid changeset state transition")
	ErrAmbiguousReference = errors.New("store: reference must set exactly one of to_symbol_id or to_file_id")
)
