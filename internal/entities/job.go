package entities

import (
	"errors"
	"time"
)

var (
	// ErrNotCompleted is returned when the artifact of a job that is not
	// (or never will be) completed is requested.
	ErrNotCompleted = errors.New("task not completed yet")
	// ErrAlreadyFinished is returned when cancelling a job that already
	// reached a terminal state.
	ErrAlreadyFinished = errors.New("task already finished")
)

type JobStatus string

const (
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether the job will not change anymore.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type MediaKind string

const (
	KindImage    MediaKind = "image"
	KindAnimated MediaKind = "animated"
	KindVideo    MediaKind = "video"
)

// Job is one resize request's full lifecycle, from upload to terminal state.
// A job is mutated by exactly one executor; readers get copies.
type Job struct {
	ID               string
	Status           JobStatus
	Progress         int
	ResultPath       string
	Kind             MediaKind
	TaskDir          string
	CreatedTimestamp time.Time
	UpdatedTimestamp time.Time
}

// JobView is the polling response shape.
type JobView struct {
	TaskID   string    `json:"task_id"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
}

func (j Job) View() JobView {
	return JobView{
		TaskID:   j.ID,
		Status:   j.Status,
		Progress: j.Progress,
	}
}
