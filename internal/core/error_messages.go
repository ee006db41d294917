package core

// error_messages.go maps technical errors to messages an uploader can act
// on. Each message carries a code that support staff can look up here.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large          "file too large"
//	FILE002 - Unreadable workbook     "invalid workbook"
//	FILE003 - Unsupported file type   "unsupported format"
//	FILE004 - Malformed CSV           "invalid csv"
//	FILE005 - Unreadable characters   "encoding error"
//	FILE006 - No file                 "no file provided"
//	FILE007 - Empty file              "empty file"
//
// # Ingestion Errors (ING001-ING099)
//
//	ING001 - Unknown schema           "schema not found"
//	ING002 - Missing required column  "missing required column"
//	ING003 - Bad query parameter      "invalid parameter"
//	ING004 - Expired or unknown ID    "ingestion not found"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - System busy              "too many ingestions"
//	REQ002 - Request cancelled        "context canceled"
//	REQ003 - Request timeout          "context deadline exceeded"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Too many requests       "rate limit"
//
// ERR000 is the fallback; the original error is in the server log.
//
// Patterns match case-insensitively with strings.Contains and the first
// match wins, so a wrapped "invalid workbook: empty file" reports FILE002.

import (
	"fmt"
	"strings"
)

// UserMessage is an error rendered for the person who uploaded the file.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller parts and upload each one",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid workbook",
		msg: UserMessage{
			Message: "The spreadsheet could not be opened",
			Action:  "Re-save the file from Excel as .xlsx and try again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "unsupported format",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload a .csv, .xlsx, or .xls file",
			Code:    "FILE003",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "The CSV file could not be parsed",
			Action:  "Check for unbalanced quotes in the file",
			Code:    "FILE004",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "The file contains characters that could not be read",
			Action:  "Save the file as UTF-8 or EUC-KR",
			Code:    "FILE005",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Choose a file to upload",
			Code:    "FILE006",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file has no rows",
			Action:  "Upload a file with a header row and data",
			Code:    "FILE007",
		},
	},

	// Ingestion errors
	{
		pattern: "schema not found",
		msg: UserMessage{
			Message: "The requested schema does not exist",
			Action:  "List schemas with GET /api/schemas and pick one of those keys",
			Code:    "ING001",
		},
	},
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "A column the schema requires was not found",
			Action:  "Check the header row against the schema field names",
			Code:    "ING002",
		},
	},
	{
		pattern: "invalid parameter",
		msg: UserMessage{
			Message: "A query parameter has an invalid value",
			Action:  "Check the filter, sort, and paging parameters",
			Code:    "ING003",
		},
	},
	{
		pattern: "ingestion not found",
		msg: UserMessage{
			Message: "That upload is no longer available",
			Action:  "Upload the file again",
			Code:    "ING004",
		},
	},

	// Request errors
	{
		pattern: "too many ingestions",
		msg: UserMessage{
			Message: "The server is busy processing other files",
			Action:  "Wait a moment and try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The request was cancelled",
			Action:  "Please try again",
			Code:    "REQ002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "REQ003",
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

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError returns the first message whose pattern occurs in err's text,
// or the ERR000 fallback. A nil error maps to the zero UserMessage.
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

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message. Error returns
// the user text; Unwrap returns the original for logging and errors.Is.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err, returning nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
