package controller

import (
	"fmt"
	"strings"

	"cloudpose/internal/imagefile"
	"cloudpose/internal/services"
	"cloudpose/internal/services/posesvc"
)

// ViewMode selects which result is displayed.
type ViewMode string

const (
	ViewPose      ViewMode = "pose"
	ViewAnnotated ViewMode = "annotated"
)

// Valid reports whether m is one of the two known views.
func (m ViewMode) Valid() bool {
	return m == ViewPose || m == ViewAnnotated
}

// ParseViewMode maps user input onto a ViewMode.
func ParseViewMode(value string) (ViewMode, error) {
	mode := ViewMode(strings.ToLower(strings.TrimSpace(value)))
	if !mode.Valid() {
		return "", services.Wrap(services.ErrValidation, "controller", "view mode", fmt.Sprintf("unknown view %q", value), nil)
	}
	return mode, nil
}

// Phase is the derived workflow state.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseImageSelected   Phase = "image_selected"
	PhaseRequestInFlight Phase = "request_in_flight"
	PhaseResultReady     Phase = "result_ready"
	PhaseErrorShown      Phase = "error_shown"
)

// State is a snapshot of the controller. Pointers are shared with the
// controller and must be treated as read-only.
type State struct {
	Image     *imagefile.Image
	Preview   string
	Pose      *posesvc.PoseResult
	Annotated string
	View      ViewMode
	Error     string
	Loading   bool
	InFlight  int

	// Selection increments on every accepted SelectImage call.
	Selection uint64
}

// Phase derives the workflow state from the snapshot.
func (s State) Phase() Phase {
	switch {
	case s.InFlight > 0:
		return PhaseRequestInFlight
	case s.Error != "":
		return PhaseErrorShown
	case s.Pose != nil || s.Annotated != "":
		return PhaseResultReady
	case s.Image != nil:
		return PhaseImageSelected
	default:
		return PhaseIdle
	}
}

// HasImage reports whether an image is selected.
func (s State) HasImage() bool {
	return s.Image != nil
}
