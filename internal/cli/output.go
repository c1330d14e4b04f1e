package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/NSSimpleApps/TestToDoList/internal/store"
	"github.com/NSSimpleApps/TestToDoList/internal/todoerr"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The operation ran and failed (not found, remote error, ...)
	ExitCommandError = 2 // The command could not run (bad flags, config, unusable store)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error

	// Reported is set once the error was written to the command output.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// IsReported reports whether err was already shown to the user.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Kind    string `json:"kind"`           // todoerr kind name, e.g. "not_found"
	Code    int    `json:"code"`           // todoerr code
	Message string `json:"message"`        // end-user message
	Reason  string `json:"reason,omitempty"`
}

// Success outputs data. In text mode, text renders it; a nil text prints
// data with fmt.
func (f *OutputFormatter) Success(data any, text func(w io.Writer) error) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	if text != nil {
		return text(f.Writer)
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Fail reports a failed operation and returns the ExitError the command
// should return. The end user sees only the generic message; the reason is
// shown in JSON and the full error goes to the log.
func (f *OutputFormatter) Fail(err error) error {
	return f.FailWithCode(ExitFailure, err)
}

// FailWithCode is Fail with an explicit exit code.
func (f *OutputFormatter) FailWithCode(code int, err error) error {
	ce := CLIError{
		Kind:    todoerr.KindOf(err).String(),
		Code:    todoerr.CodeGeneric,
		Message: todoerr.UserMessage(err),
	}
	var te *todoerr.Error
	var exitErr *ExitError
	switch {
	case errors.As(err, &te):
		ce.Code = te.Code
		ce.Reason = te.Reason
		if te.Kind == todoerr.KindNotFound {
			ce.Message = te.Reason
		}
	case errors.As(err, &exitErr):
		// Setup failures (config, flags) are the user's to fix.
		ce.Message = exitErr.Message
		if exitErr.Err != nil {
			ce.Reason = exitErr.Err.Error()
		}
	}

	if f.Format == "json" {
		_ = json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: &ce})
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", ce.Kind, ce.Message)
	}
	reported := WrapExitError(code, ce.Message, err)
	reported.Reported = true
	return reported
}

// writeRecords renders records as an aligned table, newest first as given.
func writeRecords(w io.Writer, records []store.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No items.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DONE\tTITLE\tDESCRIPTION\tCREATED\tID")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			checkbox(r.Completed), r.Title, description(r), r.CreatedAt.Local().Format("02/01/06 15:04"), r.ID)
	}
	return tw.Flush()
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func description(r store.Record) string {
	if r.Description == nil {
		return "-"
	}
	return *r.Description
}
