package workforce

import "errors"

var (
	ErrUnknownState     = errors.New("unknown state")
	ErrInvalidStateKind = errors.New("invalid state kind")
	ErrAdvisorNotFound  = errors.New("advisor not found")
	ErrAlreadyMarked    = errors.New("already marked")
	ErrNoEntryYet       = errors.New("no entry recorded for today")
	ErrNoOpenState      = errors.New("no open state")
	ErrMultipleOpen     = errors.New("multiple open states")
)
