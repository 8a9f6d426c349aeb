package types

import "errors"

// Domain errors
var (
	ErrUnsupported          = errors.New("unsupported by language adapter")
	ErrUnsupportedLanguage  = errors.New("unsupported language")
	ErrCandidateCountChange = errors.New("post-processor changed candidate count")
	ErrEmptySessionID       = errors.New("session id cannot be empty")
)
