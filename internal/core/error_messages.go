// Error Codes Reference
//
// User-facing messages carry a code support staff can look up. Typed import
// errors are matched first (errors.As), then technical messages are matched
// by substring.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Unsupported file: No handler accepts this file and action
//	         Action: Check the file extension and the requested action
//	         Match: *NotFoundError with Kind "handler"
//
//	IMP002 - Unsupported action: The handler does not support this action
//	         Action: Choose one of the actions listed for this file type
//	         Match: *UnsupportedActionError
//
//	IMP003 - Not found: The import, resource or asset does not exist
//	         Action: Verify the identifier
//	         Match: *NotFoundError (other kinds)
//
//	IMP004 - Invalid state: The import cannot run this action now
//	         Action: Check the import status before retrying
//	         Match: ErrInvalidTransition
//
// # Validation Errors (VAL010-VAL099)
//
//	VAL010 - Invalid document: The uploaded document is not well-formed
//	         Action: Fix the document and upload it again
//	         Match: *InvalidInputError
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: A record with this ID already exists
//	DB004 - Connection refused: Unable to connect to database
//	DB005 - Connection reset: Database connection was interrupted
//	DB006 - Timeout: Operation timed out
//	DB007 - Deadlock: Database was busy with conflicting operations
//	DB010 - Storage failure: The store rejected the change
//	        Match: *PersistenceError with no more specific pattern
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds maximum size limit
//	FILE004 - No file: No file was selected
//	FILE006 - File unavailable: The uploaded file could not be opened
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy: Too many imports in progress
//	UPL004 - Request cancelled: Request was cancelled
//	UPL005 - Request timeout: Request timed out
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//
// Patterns are matched case-insensitively with strings.Contains. The first
// match wins, so specific patterns come before general ones.

package core

import (
	"errors"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Please try again",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "Too many imports in progress",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Upload a smaller document",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "open file",
		msg: UserMessage{
			Message: "The uploaded file could not be opened",
			Action:  "Upload the file again",
			Code:    "FILE006",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error into a user-friendly message.
// Returns an empty UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var invalid *InvalidInputError
	if errors.As(err, &invalid) {
		if errors.Is(err, ErrDocumentTooLarge) || strings.Contains(strings.ToLower(invalid.Reason), "file too large") {
			return matchPattern("file too large")
		}
		return UserMessage{
			Message: invalid.Error(),
			Action:  "Fix the document and upload it again",
			Code:    "VAL010",
		}
	}

	var unsupported *UnsupportedActionError
	if errors.As(err, &unsupported) {
		return UserMessage{
			Message: "This file type does not support the requested action",
			Action:  "Choose one of the actions listed for this file type",
			Code:    "IMP002",
		}
	}

	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		if notFound.Kind == "handler" {
			return UserMessage{
				Message: "This file is not supported",
				Action:  "Check the file extension and the requested action",
				Code:    "IMP001",
			}
		}
		return UserMessage{
			Message: "The requested " + notFound.Kind + " does not exist",
			Action:  "Verify the identifier",
			Code:    "IMP003",
		}
	}

	if errors.Is(err, ErrInvalidTransition) {
		return UserMessage{
			Message: "The import cannot run this action in its current state",
			Action:  "Check the import status before retrying",
			Code:    "IMP004",
		}
	}

	if m := matchPattern(err.Error()); m.Code != "" {
		return m
	}

	if errors.Is(err, ErrPersistence) {
		return UserMessage{
			Message: "The change could not be saved",
			Action:  "Please try again or contact support",
			Code:    "DB010",
		}
	}

	return defaultMessage
}

func matchPattern(s string) UserMessage {
	lower := strings.ToLower(s)
	for _, p := range errorPatterns {
		if strings.Contains(lower, p.pattern) {
			return p.msg
		}
	}
	return UserMessage{}
}

// FormatUserError renders err as "<message> (Code: <code>). <action>".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Code == "" {
		return ""
	}
	out := msg.Message + " (Code: " + msg.Code + ")"
	if msg.Action != "" {
		out += ". " + msg.Action
	}
	return out
}
