package entity

import "time"

type DeploymentStatus string

const (
	DeploymentStatusPending DeploymentStatus = "pending"
	DeploymentStatusRunning DeploymentStatus = "running"
	DeploymentStatusSuccess DeploymentStatus = "success"
	DeploymentStatusFailed  DeploymentStatus = "failed"
)

type DeployMode string

const (
	DeployModeFull  DeployMode = "full"
	DeployModeQuick DeployMode = "quick"
)

// Deployment is one recorded run of the pipeline against a host.
type Deployment struct {
	ID          ID               `json:"id"`
	RunID       string           `json:"run_id"`
	Mode        DeployMode       `json:"mode"`
	Host        string           `json:"host"`
	Image       string           `json:"image"`
	CommitSHA   string           `json:"commit_sha"`
	Status      DeploymentStatus `json:"status"`
	Healthy     bool             `json:"healthy"`
	FailedStage string           `json:"failed_stage,omitempty"`
	DurationMS  int64            `json:"duration_ms"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Finish marks the record with its terminal status and total duration.
func (d *Deployment) Finish(status DeploymentStatus, started time.Time) {
	d.Status = status
	d.DurationMS = time.Since(started).Milliseconds()
}
