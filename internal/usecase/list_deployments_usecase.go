package usecase

import (
	"context"

	"github.com/samber/do"
	"github.com/yz4230/shipit-poc/internal/entity"
	"github.com/yz4230/shipit-poc/internal/history"
)

const defaultListLimit = 50

type ListDeploymentsUsecase interface {
	Execute(ctx context.Context, limit int) ([]*entity.Deployment, error)
}

type listDeploymentsUsecaseImpl struct {
	deployments history.DeploymentRepository
}

// Execute implements ListDeploymentsUsecase.
func (u *listDeploymentsUsecaseImpl) Execute(ctx context.Context, limit int) ([]*entity.Deployment, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return u.deployments.ListRecent(ctx, limit)
}

func NewListDeploymentsUsecase(injector *do.Injector) (ListDeploymentsUsecase, error) {
	return &listDeploymentsUsecaseImpl{
		deployments: do.MustInvoke[history.DeploymentRepository](injector),
	}, nil
}
