// Package history is the local ledger of past deployment runs. It is written
// best-effort for observability only; the pipeline never consults it to make
// decisions.
package history

import (
	"context"
	"errors"

	"github.com/yz4230/shipit-poc/internal/entity"
	"gorm.io/gorm"
)

type DeploymentRepository interface {
	Create(ctx context.Context, dep *entity.Deployment) (*entity.Deployment, error)
	Update(ctx context.Context, dep *entity.Deployment) (*entity.Deployment, error)
	GetByRunID(ctx context.Context, runID string) (*entity.Deployment, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.Deployment, error)
}

type deploymentRepositoryImpl struct {
	db *gorm.DB
}

func NewDeploymentRepository(db *gorm.DB) DeploymentRepository {
	return &deploymentRepositoryImpl{db: db}
}

// Create records a new run.
func (r *deploymentRepositoryImpl) Create(ctx context.Context, dep *entity.Deployment) (*entity.Deployment, error) {
	var model Deployment
	model.FromEntity(dep)
	if err := gorm.G[Deployment](r.db).Create(ctx, &model); err != nil {
		return nil, err
	}
	return model.ToEntity(), nil
}

// Update rewrites a run's mutable fields (status, health, failed stage).
func (r *deploymentRepositoryImpl) Update(ctx context.Context, dep *entity.Deployment) (*entity.Deployment, error) {
	var model Deployment
	model.FromEntity(dep)
	_, err := gorm.G[Deployment](r.db).Where("run_id = ?", dep.RunID).Updates(ctx, model)
	if err != nil {
		return nil, err
	}
	return r.GetByRunID(ctx, dep.RunID)
}

// GetByRunID finds one run by its uuid.
func (r *deploymentRepositoryImpl) GetByRunID(ctx context.Context, runID string) (*entity.Deployment, error) {
	found, err := gorm.G[Deployment](r.db).Where("run_id = ?", runID).First(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}
	return found.ToEntity(), nil
}

// ListRecent returns the newest runs first.
func (r *deploymentRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*entity.Deployment, error) {
	founds, err := gorm.G[Deployment](r.db).Order("created_at desc").Limit(limit).Find(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]*entity.Deployment, len(founds))
	for i, f := range founds {
		res[i] = f.ToEntity()
	}
	return res, nil
}
