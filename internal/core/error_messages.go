package core

// error_messages.go maps technical errors to user-facing messages with a
// support code.
//
// # Error Codes Reference
//
// AGS document errors (AGS001-AGS099), fatal for the whole file:
//
//	AGS001 - Malformed group: a group block does not follow the GROUP/HEADING/UNIT/TYPE layout
//	AGS002 - Duplicate group: the same group appears twice
//	AGS003 - Column length mismatch: columns of one group have different row counts
//	AGS004 - Encoding error: the file could not be decoded as text
//
// Mapping errors (MAP001-MAP099):
//
//	MAP001 - Invalid descriptor configuration, e.g. an empty unique key
//	MAP002 - Unknown descriptor
//	MAP003 - Orphan record: a new record's parent does not exist
//
// Store errors (STO001-STO099):
//
//	STO001 - Duplicate key
//	STO002 - Foreign key violation
//	STO003 - Connection refused
//	STO004 - Connection reset
//	STO005 - Timeout
//	STO006 - Deadlock
//
// Import errors (IMP001-IMP099):
//
//	IMP001 - Too many concurrent imports
//	IMP002 - Import run not found (expired or already committed)
//	IMP003 - Request cancelled
//	IMP004 - Request timed out
//	IMP005 - Missing project scope
//	IMP006 - Run is already being committed
//
// File errors (FILE001-FILE099):
//
//	FILE001 - File too large
//	FILE002 - No file provided
//	FILE003 - Empty file
//
// ERR000 is the fallback. Support staff should check the logs for the
// original error when users report it.
//
// Typed errors are matched first with errors.As / errors.Is, then the
// message is matched case-insensitively against errorPatterns. The first
// match wins.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/geoimport/internal/ags"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorKind struct {
	match func(error) bool
	msg   UserMessage
}

func as[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

var errorKinds = []errorKind{
	{as[*ags.MalformedGroupError], UserMessage{
		Message: "The AGS file contains a malformed group",
		Action:  "Check the GROUP, HEADING, UNIT and TYPE rows of the reported group",
		Code:    "AGS001",
	}},
	{as[*ags.DuplicateGroupError], UserMessage{
		Message: "The AGS file contains the same group twice",
		Action:  "Merge the duplicated group into a single block",
		Code:    "AGS002",
	}},
	{as[*ags.ColumnLengthMismatchError], UserMessage{
		Message: "A group has columns with different row counts",
		Action:  "Re-export the file from the source system",
		Code:    "AGS003",
	}},
	{as[*ConfigurationError], UserMessage{
		Message: "An import mapping is misconfigured",
		Action:  "Contact support with the error code",
		Code:    "MAP001",
	}},
	{is(ErrUnknownDescriptor), UserMessage{
		Message: "Unknown import mapping",
		Action:  "Verify the mapping name is correct",
		Code:    "MAP002",
	}},
	{as[*OrphanRecordError], UserMessage{
		Message: "A record refers to a parent that does not exist",
		Action:  "Include the parent group in the file or import it first",
		Code:    "MAP003",
	}},
	{is(ErrTooManyImports), UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
	}},
	{is(ErrRunNotFound), UserMessage{
		Message: "Import run not found",
		Action:  "The run may have expired or already been committed. Please import the file again",
		Code:    "IMP002",
	}},
	{is(ErrCommitInProgress), UserMessage{
		Message: "This import is already being committed",
		Action:  "Wait for the running commit to finish",
		Code:    "IMP006",
	}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// More specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{
		Message: "A record with this key already exists",
		Action:  "Summarize the import again before committing",
		Code:    "STO001",
	}},
	{"unique constraint", UserMessage{
		Message: "A record with this key already exists",
		Action:  "Summarize the import again before committing",
		Code:    "STO001",
	}},
	{"foreign key", UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Ensure parent records are imported first",
		Code:    "STO002",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "STO003",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "STO004",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "STO006",
	}},
	{"database is locked", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "STO006",
	}},
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "IMP003",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "IMP004",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "STO005",
	}},
	{"scope is required", UserMessage{
		Message: "No project was given for the import",
		Action:  "Select a project and try again",
		Code:    "IMP005",
	}},
	{"encoding error", UserMessage{
		Message: "File contains invalid characters",
		Action:  "Save the file as UTF-8",
		Code:    "AGS004",
	}},
	{"file too large", UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the file into smaller exports",
		Code:    "FILE001",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select an AGS file to import",
		Code:    "FILE002",
	}},
	{"empty file", UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload an AGS file with data rows",
		Code:    "FILE003",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. It returns
// the zero UserMessage for nil and the ERR000 fallback when nothing matches.
//
//	msg := MapError(&ags.DuplicateGroupError{Group: "LOCA"})
//	// msg.Code == "AGS002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, k := range errorKinds {
		if k.match(err) {
			return k.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string { return e.User.Message }
func (e *UserError) Unwrap() error { return e.Technical }

// NewUserError wraps err with its mapped message. Returns nil for nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
