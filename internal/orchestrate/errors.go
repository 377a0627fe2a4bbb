package orchestrate

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionFinished   = errors.New("session already reached a terminal state")
	ErrInvalidTransition = errors.New("action not valid in current session state")
	ErrRetriesExhausted  = errors.New("retry limit reached")
	ErrCopiesOutOfRange  = errors.New("copies must be between 1 and 99")
	ErrUnknownPrinter    = errors.New("printer is not among the offered candidates")
)

// Messages surfaced into session error state. The connection-lost text is
// load-bearing: the dashboard matches on it to suggest the browser fallback.
const (
	msgServiceUnreachable = "unable to reach print service"
	msgConnectionLost     = "lost connection to print service"
	msgNoPOSPrinters      = "no POS/thermal printers are available"
	msgNoPrinters         = "no compatible printers are available"
	msgSessionTimeout     = "print session timed out"
)

// SubmissionError reports a failed dispatch call, either validation or
// transport. It is retryable up to the session's retry cap.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return e.Message
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
