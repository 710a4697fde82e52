package history

import (
	"github.com/yz4230/shipit-poc/internal/entity"
	"gorm.io/gorm"
)

type Deployment struct {
	gorm.Model
	RunID       string `gorm:"uniqueIndex"`
	Mode        string
	Host        string
	Image       string
	CommitSHA   string
	Status      string
	Healthy     bool
	FailedStage string
	DurationMS  int64
}

func (d *Deployment) ToEntity() *entity.Deployment {
	return &entity.Deployment{
		ID:          entity.NewID(d.ID),
		RunID:       d.RunID,
		Mode:        entity.DeployMode(d.Mode),
		Host:        d.Host,
		Image:       d.Image,
		CommitSHA:   d.CommitSHA,
		Status:      entity.DeploymentStatus(d.Status),
		Healthy:     d.Healthy,
		FailedStage: d.FailedStage,
		DurationMS:  d.DurationMS,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (d *Deployment) FromEntity(e *entity.Deployment) {
	if e.ID != "" {
		d.ID = e.ID.Uint()
	}
	d.RunID = e.RunID
	d.Mode = string(e.Mode)
	d.Host = e.Host
	d.Image = e.Image
	d.CommitSHA = e.CommitSHA
	d.Status = string(e.Status)
	d.Healthy = e.Healthy
	d.FailedStage = e.FailedStage
	d.DurationMS = e.DurationMS
}
