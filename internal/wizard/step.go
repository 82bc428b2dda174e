package wizard

import (
	"fmt"
	"strconv"
)

// Step is a wizard page.
type Step int

const (
	StepUpload    Step = 1
	StepConfigure Step = 2
	StepProcess   Step = 3
)

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepConfigure:
		return "configure"
	case StepProcess:
		return "process"
	default:
		return "step(" + strconv.Itoa(int(s)) + ")"
	}
}

// Valid reports whether s is one of the three steps.
func (s Step) Valid() bool {
	return s >= StepUpload && s <= StepProcess
}

// ErrorKind classifies a StepError for the user-facing layer.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindRemote       ErrorKind = "remote"
	KindPrerequisite ErrorKind = "prerequisite"
	KindBusy         ErrorKind = "busy"
)

// StepError is an inline error shown on the step where it happened.
type StepError struct {
	Step    Step      `json:"step"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step: %s", e.Step, e.Message)
}

func (e *StepError) Unwrap() error { return e.Err }
