package contract

import "errors"

var (
	ErrMalformedBookingEvent      = errors.New("malformed booking event")
	ErrModelUnavailable           = errors.New("model unavailable")
	ErrToolArgumentInvalid        = errors.New("tool argument invalid")
	ErrUnknownTool                = errors.New("unknown tool")
	ErrNotificationDispatchFailed = errors.New("notification dispatch failed")
	ErrSummarizationTimeout       = errors.New("summarization timed out")
	ErrValidation                 = errors.New("validation failed")
	ErrNotConfigured              = errors.New("not configured")
	ErrPromptMissing              = errors.New("required prompt is missing")
)

// Session lifecycle errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session has ended")
	ErrTurnInProgress  = errors.New("a turn is already in progress")
	ErrNotSeeded       = errors.New("session is not seeded")
	ErrNothingToRetry  = errors.New("no failed turn to retry")
)
