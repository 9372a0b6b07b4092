package core

import (
	"errors"
	"fmt"
)

// ErrRunNotFound is returned when a staged import run does not exist.
var ErrRunNotFound = errors.New("import run not found")

// ErrCommitInProgress is returned when a run is committed while an earlier
// commit of the same run is still running.
var ErrCommitInProgress = errors.New("import run is already being committed")

// ErrUnknownDescriptor is returned for descriptor IDs missing from the registry.
var ErrUnknownDescriptor = errors.New("unknown descriptor")

// ConfigurationError reports a mapping descriptor that cannot be used.
// It fails only the pipeline of the descriptor it names.
type ConfigurationError struct {
	Descriptor string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("descriptor %s: invalid configuration: %s", e.Descriptor, e.Reason)
}

// OrphanRecordError is returned by Commit when a new record's parent cannot
// be found in the store.
type OrphanRecordError struct {
	Descriptor string
	Row        int
}

func (e *OrphanRecordError) Error() string {
	return fmt.Sprintf("descriptor %s row %d: parent record not found", e.Descriptor, e.Row)
}
