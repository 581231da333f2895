package core

// errors.go defines the ingestion error taxonomy and the mapping from
// technical errors to user-facing messages.
//
// Fatal errors (FormatError, SchemaError) abort the whole ingestion and
// reach the client as a structured error body. RowErrors are non-fatal:
// the offending row is skipped, the rest of the file is processed, and
// the errors stay on the IngestResult for diagnostics.

import (
	"errors"
	"fmt"
	"strings"
)

// FormatError indicates the upload is not a recognizable tabular file.
// Raised before any parsing happens.
type FormatError struct {
	Filename string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported file type %q: only CSV files are accepted", e.Filename)
}

// SchemaError indicates the file cannot yield a dataset at all: it is
// empty, not parseable as CSV, or the header is missing required columns.
type SchemaError struct {
	Missing []string // canonical names of absent columns
	Empty   bool
	Reason  string // non-empty for CSV syntax failures
}

func (e *SchemaError) Error() string {
	switch {
	case e.Empty:
		return "empty file: no header row found"
	case e.Reason != "":
		return "invalid csv: " + e.Reason
	}
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// RowError records why a single data row was skipped. Row is the
// 1-based index of the data row in the source file (header excluded).
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// ErrIncompleteDataset signals a stored dataset without a summary at
// render time. The store guarantees this cannot happen for datasets it
// created, so hitting it is a defect, not user error.
var ErrIncompleteDataset = errors.New("dataset has no summary")

// UserMessage is a client-safe rendering of an error, with a short code
// users can quote to support.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

// MapError converts a technical error into a UserMessage. Typed errors
// are matched first; unknown errors fall back to a generic ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var formatErr *FormatError
	var schemaErr *SchemaError

	switch {
	case errors.As(err, &formatErr):
		return UserMessage{
			Message: "Only CSV files are allowed",
			Action:  "Upload a file with a .csv extension",
			Code:    "FILE001",
		}
	case errors.As(err, &schemaErr) && schemaErr.Empty:
		return UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a CSV file with a header row",
			Code:    "CSV002",
		}
	case errors.As(err, &schemaErr) && schemaErr.Reason != "":
		return UserMessage{
			Message: "File is not valid CSV",
			Action:  "Ensure the file is comma-separated with consistent quoting",
			Code:    "CSV003",
		}
	case errors.As(err, &schemaErr):
		return UserMessage{
			Message: fmt.Sprintf("Missing required columns: %s", strings.Join(schemaErr.Missing, ", ")),
			Action:  "Add the missing columns to the CSV header and re-upload",
			Code:    "CSV001",
		}
	case errors.Is(err, ErrNotFound):
		return UserMessage{
			Message: "Dataset not found or has been deleted",
			Action:  "Refresh the dataset list",
			Code:    "DS404",
		}
	case errors.Is(err, ErrIncompleteDataset):
		return UserMessage{
			Message: "Dataset is missing its summary",
			Action:  "Re-upload the file or contact support",
			Code:    "DS500",
		}
	case errors.Is(err, ErrStoreUnavailable):
		return UserMessage{
			Message: "Storage is temporarily unavailable",
			Action:  "Retry the upload in a few moments",
			Code:    "DB001",
		}
	}

	// Pattern fallback for errors that cross a boundary without type
	// information (context timeouts, request body limits).
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "request body too large"):
		return UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller uploads",
			Code:    "FILE002",
		}
	case strings.Contains(errStr, "context deadline exceeded"):
		return UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "REQ001",
		}
	}

	return UserMessage{
		Message: "An unexpected error occurred",
		Action:  "Please try again or contact support",
		Code:    "ERR000",
	}
}
