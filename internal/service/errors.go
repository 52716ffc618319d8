package service

import "errors"

var (
	// ErrStorage reports a failed blob or manifest write (or read).
	ErrStorage = errors.New("storage failure")
	// ErrNotFound reports an unknown upload id or file index.
	ErrNotFound = errors.New("upload not found")
	// ErrNoFiles rejects an upload without files before anything is persisted.
	ErrNoFiles = errors.New("no files provided")
	// ErrUploadClosed is returned when an Upload is used after Commit or Abort.
	ErrUploadClosed = errors.New("upload already committed or aborted")
)
