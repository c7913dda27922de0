package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Exit codes for livemark commands.
const (
	ExitSuccess      = 0 // command succeeded
	ExitFailure      = 1 // a scenario, template or config did not pass
	ExitCommandError = 2 // the command could not run: bad path, unreadable file, no database
)

// ExitError carries the process exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error // optional cause
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

// NewExitError creates an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError creates an ExitError around err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Errors that are not ExitErrors map to ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode classifies a failure in command output.
type ErrorCode string

const (
	ErrCodeGeneric        ErrorCode = "E_GENERIC"
	ErrCodeRead           ErrorCode = "E_READ"
	ErrCodeFixtures       ErrorCode = "E_FIXTURES"
	ErrCodeCompile        ErrorCode = "E_COMPILE"
	ErrCodeConfig         ErrorCode = "E_CONFIG"
	ErrCodeInvalidConfig  ErrorCode = "E_INVALID_CONFIG"
	ErrCodeScenario       ErrorCode = "E_SCENARIO"
	ErrCodeScenarioFailed ErrorCode = "E_SCENARIO_FAILED"
	ErrCodeTestFailed     ErrorCode = "E_TEST_FAILED"
	ErrCodeDatabase       ErrorCode = "E_DATABASE"
	ErrCodeNoSession      ErrorCode = "E_NO_SESSION"
)

// ExitCode returns the process exit code for c. Codes for input that was
// read but did not pass are failures; the rest are command errors.
func (c ErrorCode) ExitCode() int {
	switch c {
	case ErrCodeCompile, ErrCodeInvalidConfig, ErrCodeScenarioFailed, ErrCodeTestFailed:
		return ExitFailure
	default:
		return ExitCommandError
	}
}

// TextRenderer is implemented by command results that have a human-readable
// form. Results without one are printed with fmt.
type TextRenderer interface {
	RenderText(w io.Writer)
}

// OutputFormatter renders command results as JSON or text.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool

	// Logger receives verbose diagnostics when set.
	Logger *slog.Logger

	// TraceID is attached to JSON responses, for commands reading a session.
	TraceID string
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status  string    `json:"status"` // "ok" or "error"
	Data    any       `json:"data,omitempty"`
	Error   *CLIError `json:"error,omitempty"`
	TraceID string    `json:"trace_id,omitempty"`
}

// CLIError describes a failure in a CLIResponse.
type CLIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

// Success renders a passing result.
func (f *OutputFormatter) Success(data any) error {
	return f.emit(CLIResponse{Status: "ok", Data: data, TraceID: f.TraceID}, data)
}

// Failure renders a result that was produced but did not pass, and returns
// the ExitError the command should end with.
func (f *OutputFormatter) Failure(code ErrorCode, message string, data any) error {
	resp := CLIResponse{
		Status:  "error",
		Data:    data,
		Error:   &CLIError{Code: code, Message: message},
		TraceID: f.TraceID,
	}
	if err := f.emit(resp, data); err != nil {
		return err
	}
	return NewExitError(code.ExitCode(), message)
}

func (f *OutputFormatter) emit(resp CLIResponse, data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	if r, ok := data.(TextRenderer); ok {
		r.RenderText(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error renders an error without a result.
func (f *OutputFormatter) Error(code ErrorCode, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:  "error",
			Error:   &CLIError{Code: code, Message: message, Details: details},
			TraceID: f.TraceID,
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail renders err under code and returns the matching ExitError.
func (f *OutputFormatter) Fail(code ErrorCode, message string, err error) error {
	text := message
	if err != nil {
		text = fmt.Sprintf("%s: %v", message, err)
	}
	_ = f.Error(code, text, nil)
	return WrapExitError(code.ExitCode(), message, err)
}

// VerboseLog writes a diagnostic in verbose mode only. It goes to Logger
// at debug level when one is set, otherwise to ErrWriter, so JSON output
// stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	if f.Logger != nil {
		f.Logger.Debug(fmt.Sprintf(format, args...))
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
