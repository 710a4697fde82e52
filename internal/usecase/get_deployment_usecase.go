package usecase

import (
	"context"

	"github.com/samber/do"
	"github.com/yz4230/shipit-poc/internal/entity"
	"github.com/yz4230/shipit-poc/internal/history"
)

type GetDeploymentUsecase interface {
	Execute(ctx context.Context, runID string) (*entity.Deployment, error)
}

type getDeploymentUsecaseImpl struct {
	deployments history.DeploymentRepository
}

// Execute implements GetDeploymentUsecase.
func (u *getDeploymentUsecaseImpl) Execute(ctx context.Context, runID string) (*entity.Deployment, error) {
	if runID == "" {
		return nil, entity.ErrInvalid
	}
	return u.deployments.GetByRunID(ctx, runID)
}

func NewGetDeploymentUsecase(injector *do.Injector) (GetDeploymentUsecase, error) {
	return &getDeploymentUsecaseImpl{
		deployments: do.MustInvoke[history.DeploymentRepository](injector),
	}, nil
}
