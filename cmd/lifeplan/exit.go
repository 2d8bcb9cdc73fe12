package main

import (
	"errors"

	"github.com/nhle/lifeplan/internal/mirror"
	"github.com/nhle/lifeplan/internal/store"
)

// Process exit codes.
const (
	exitOK          = 0
	exitInvalid     = 1
	exitConflict    = 2
	exitUnavailable = 3
	exitCorrupt     = 4
)

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, store.ErrCorruptEventStream):
		return exitCorrupt
	case errors.Is(err, mirror.ErrUnavailable), mirror.IsAuthError(err):
		return exitUnavailable
	case errors.Is(err, store.ErrConcurrencyConflict):
		return exitConflict
	}
	return exitInvalid
}
