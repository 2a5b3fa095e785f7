package compiler

import (
	"errors"
	"fmt"
)

// Stage names the pipeline step a task failed in.
type Stage string

const (
	StageGenerate Stage = "generate"
	StageValidate Stage = "validate"
	StageEvaluate Stage = "evaluate"
	StageRepair   Stage = "repair"
	StagePersist  Stage = "persist"
	StagePanic    Stage = "panic"
	// StageCancel marks tasks never started because the batch was cancelled.
	StageCancel Stage = "cancel"
)

// TaskError is a failure isolated to one task. It never aborts a level.
type TaskError struct {
	Stage   Stage
	TokenID int64
	Err     error
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return fmt.Sprintf("token %d: %s: %v", e.TokenID, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage of a TaskError in err's chain, or "".
func StageOf(err error) Stage {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Stage
	}
	return ""
}

// ErrScoreOutOfRange is returned for evaluations outside [MinScore, MaxScore].
var ErrScoreOutOfRange = errors.New("score out of range")
