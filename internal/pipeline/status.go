package pipeline

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("pipeline: invalid status transition")

// VideoStatus is the caller-owned lifecycle state of a product's video.
// The coordinator never stores it; callers apply the terminal status a
// run produces.
type VideoStatus string

// Video statuses.
const (
	StatusNotGenerated VideoStatus = "not_generated"
	StatusGenerating   VideoStatus = "generating"
	StatusCompleted    VideoStatus = "completed"
	StatusFailed       VideoStatus = "failed"
)

// transitions maps each status to the statuses it may move to.
// Completed and failed both re-enter generating on regeneration.
var transitions = map[VideoStatus][]VideoStatus{
	StatusNotGenerated: {StatusGenerating},
	StatusGenerating:   {StatusCompleted, StatusFailed},
	StatusCompleted:    {StatusGenerating},
	StatusFailed:       {StatusGenerating},
}

// IsValid reports whether s is a known status.
func (s VideoStatus) IsValid() bool {
	switch s {
	case StatusNotGenerated, StatusGenerating, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status may move to next.
func (s VideoStatus) CanTransitionTo(next VideoStatus) bool {
	for _, allowed := range transitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change.
func Transition(from, to VideoStatus) (VideoStatus, error) {
	if !from.CanTransitionTo(to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}
