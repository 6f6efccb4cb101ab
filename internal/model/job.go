package model

import (
	"time"

	"gorm.io/gorm"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one unit of migration work for exactly one VM. After leaving
// queued, a job row is mutated only by the executor goroutine that owns it.
type Job struct {
	gorm.Model
	VMName                string    `gorm:"not null" json:"vm_name"`
	SourceProviderID      uint      `gorm:"not null" json:"source_provider_id"`
	DestinationProviderID uint      `gorm:"not null" json:"destination_provider_id"`
	TargetNode            string    `json:"target_node"`
	Status                JobStatus `gorm:"not null;default:'queued'" json:"status"`
	Progress              int       `gorm:"not null;default:0" json:"progress"`
}

// JobLog is one append-only log line. Seq starts at 0 per job and is the
// authoritative ordering, independent of wall-clock time.
type JobLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	JobID     uint      `gorm:"index;not null" json:"job_id"`
	Seq       int       `gorm:"not null" json:"seq"`
	Message   string    `gorm:"not null" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
