// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. Admins can quote the code when reporting a problem.
//
// # Course Store Errors (DB001-DB099)
//
//	DB001 - Course exists: A course with this code already exists
//	        Patterns: "course already exists"
//
//	DB002 - Code conflict: Another course already uses the new code
//	        Patterns: "code already in use"
//
//	DB003 - Not found: Course does not exist
//	        Patterns: "course not found"
//
//	DB004 - Connection refused: Unable to connect to database
//	        Patterns: "connection refused"
//
//	DB005 - Connection reset: Database connection was interrupted
//	        Patterns: "connection reset"
//
//	DB006 - Deadlock: Database was busy with conflicting operations
//	        Patterns: "deadlock"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Missing column: the code or name header is absent
//	         Patterns: "missing required column"
//
//	VAL002 - No data: header only, or an empty file
//	         Patterns: "at least a header row"
//
//	VAL003 - Invalid rows: one or more rows miss a code or name
//	         Patterns: "invalid rows"
//
//	VAL004 - Invalid request: request body failed validation
//	         Patterns: "validation failed"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large       Patterns: "file too large"
//	FILE002 - Invalid CSV          Patterns: "invalid csv"
//	FILE003 - Unreadable workbook  Patterns: "unreadable workbook"
//	FILE004 - No file              Patterns: "no file provided"
//	FILE005 - Unsupported type     Patterns: "unsupported file type"
//
// # Sync Errors (SYNC001-SYNC099)
//
//	SYNC001 - System busy: too many sync jobs running
//	          Patterns: "too many concurrent syncs"
//
//	SYNC002 - Job expired: sync job not found
//	          Patterns: "sync job not found"
//
//	SYNC003 - Cancelled: the sync stopped before all changes were applied
//	          Patterns: "sync cancelled"
//
//	SYNC004 - Snapshot unavailable: courses could not be fetched
//	          Patterns: "fetch courses"
//
//	SYNC005 - Request cancelled   Patterns: "context canceled"
//	SYNC006 - Request timeout     Patterns: "context deadline exceeded", "timeout"
//	SYNC007 - Shutting down       Patterns: "shutting down"
//
// # Access Errors (AUTH001, RATE001)
//
//	AUTH001 - Unauthorized: missing or wrong admin token
//	          Patterns: "unauthorized"
//
//	RATE001 - Rate limited: too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the server log for the technical
// error, which is logged with the request ID.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.
package core

import "strings"

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Course store
	{
		pattern: "course already exists",
		msg: UserMessage{
			Message: "A course with this code already exists",
			Action:  "Use the existing course or pick a different code",
			Code:    "DB001",
		},
	},
	{
		pattern: "code already in use",
		msg: UserMessage{
			Message: "Another course already uses this code",
			Action:  "Choose a code that is not taken",
			Code:    "DB002",
		},
	},
	{
		pattern: "course not found",
		msg: UserMessage{
			Message: "Course not found",
			Action:  "Refresh the course list and try again",
			Code:    "DB003",
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
			Code:    "DB006",
		},
	},

	// Validation; these precede "invalid csv" which prefixes them
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Required column is missing from CSV",
			Action:  "The file must have a header row with \"code\" and \"name\" columns",
			Code:    "VAL001",
		},
	},
	{
		pattern: "at least a header row",
		msg: UserMessage{
			Message: "The file has no course rows",
			Action:  "Add at least one row below the header",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid rows",
		msg: UserMessage{
			Message: "Some rows are missing a code or a name",
			Action:  "Fix the listed rows and upload again",
			Code:    "VAL003",
		},
	},
	{
		pattern: "validation failed",
		msg: UserMessage{
			Message: "The request is invalid",
			Action:  "Check the highlighted fields",
			Code:    "VAL004",
		},
	},

	// Files
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the course list into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid course CSV",
			Action:  "Ensure the file is comma-separated with code and name columns",
			Code:    "FILE002",
		},
	},
	{
		pattern: "unreadable workbook",
		msg: UserMessage{
			Message: "The workbook could not be read",
			Action:  "Save the file as .xlsx or export it as CSV",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or xlsx file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "FILE005",
		},
	},

	// Sync jobs
	{
		pattern: "too many concurrent syncs",
		msg: UserMessage{
			Message: "Other syncs are still running",
			Action:  "Please wait a moment and try again",
			Code:    "SYNC001",
		},
	},
	{
		pattern: "sync job not found",
		msg: UserMessage{
			Message: "Sync job not found",
			Action:  "The job may have expired. Start a new sync",
			Code:    "SYNC002",
		},
	},
	{
		pattern: "sync cancelled",
		msg: UserMessage{
			Message: "The sync was cancelled before all changes were applied",
			Action:  "Run the sync again to apply the remaining changes",
			Code:    "SYNC003",
		},
	},
	{
		pattern: "shutting down",
		msg: UserMessage{
			Message: "The server is restarting",
			Action:  "Please start the sync again in a minute",
			Code:    "SYNC007",
		},
	},
	{
		pattern: "fetch courses",
		msg: UserMessage{
			Message: "Current courses could not be loaded",
			Action:  "Please try again in a few moments",
			Code:    "SYNC004",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "SYNC005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "SYNC006",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "SYNC006",
		},
	},

	// Access
	{
		pattern: "unauthorized",
		msg: UserMessage{
			Message: "Admin access required",
			Action:  "Sign in with a valid admin token",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first pattern match (case-insensitive), or ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}
