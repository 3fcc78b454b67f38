package service

import "errors"

// Precondition errors. They are returned before any request is sent and
// never produce a conversation entry.
var (
	ErrConfigFrozen  = errors.New("configuration cannot change while the document is processing or ready")
	ErrNoDocument    = errors.New("no document uploaded")
	ErrJobActive     = errors.New("document is already processing or processed")
	ErrNotProcessing = errors.New("document is not processing")
	ErrNotReady      = errors.New("document is not ready for questions")
	ErrEmptyQuestion = errors.New("question is empty")
	ErrQueryPending  = errors.New("a question is already being answered")
)

// ErrReplaced is returned by Start when the document was replaced or deleted
// while the processing request was in flight. The request's job is abandoned.
var ErrReplaced = errors.New("document was replaced while processing was being requested")

// ErrClosed is returned by Wait once the controller is closed.
var ErrClosed = errors.New("session closed")

// ErrPollTimeout is reported when polling gives up on a job that is still
// processing. The job keeps its state; Resume polls again.
var ErrPollTimeout = errors.New("stopped waiting for processing to finish")
