package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/yz4230/shipit-poc/internal/entity"
)

func newRepo(t *testing.T) DeploymentRepository {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), ".shipit", "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	return NewDeploymentRepository(db)
}

func TestCreateAndFinishRun(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	dep := &entity.Deployment{
		RunID:     uuid.NewString(),
		Mode:      entity.DeployModeFull,
		Host:      "deploy@prod",
		Image:     "myapp:latest",
		CommitSHA: "abc1234",
		Status:    entity.DeploymentStatusRunning,
	}
	created, err := repo.Create(ctx, dep)
	if err != nil {
		t.Fatal(err)
	}
	if created.Status != entity.DeploymentStatusRunning {
		t.Errorf("status = %v", created.Status)
	}

	created.Status = entity.DeploymentStatusSuccess
	created.Healthy = true
	created.DurationMS = 42000
	updated, err := repo.Update(ctx, created)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != entity.DeploymentStatusSuccess || !updated.Healthy {
		t.Errorf("update not persisted: %+v", updated)
	}
}

func TestGetByRunIDNotFound(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.GetByRunID(context.Background(), uuid.NewString())
	if !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
}

func TestListRecentOrder(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = uuid.NewString()
		if _, err := repo.Create(ctx, &entity.Deployment{
			RunID:  ids[i],
			Mode:   entity.DeployModeQuick,
			Status: entity.DeploymentStatusSuccess,
		}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs; want limit applied", len(runs))
	}
}
