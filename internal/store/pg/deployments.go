package pg

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// PGDeploymentStore implements store.DeploymentStore — a supplemented
// feature (SPEC_FULL.md §9.1) that stores Deployment rows. No code path in
// this repository creates or updates one; the self-modification restart
// does not record a Deployment.
type PGDeploymentStore struct {
	db *sql.DB
}

func NewPGDeploymentStore(db *sql.DB) *PGDeploymentStore {
	return &PGDeploymentStore{db: db}
}

func (s *PGDeploymentStore) Create(ctx context.Context, d *store.Deployment) error {
	if d.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return store.NewError(store.KindFatal, "uuid gen", err)
		}
		d.ID = id
	}
	if d.Status == "" {
		d.Status = store.DeploymentBuilding
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deployments (id, sha, branch, status, started_at)
		VALUES ($1, $2, $3, $4, now())`, d.ID, d.SHA, d.Branch, d.Status)
	if err != nil {
		return store.NewError(store.KindTransient, "deployment create", err)
	}
	return nil
}

func (s *PGDeploymentStore) SetStatus(ctx context.Context, id uuid.UUID, status store.DeploymentStatus, report []byte) error {
	finished := status == store.DeploymentHealthy || status == store.DeploymentRolledBack || status == store.DeploymentFailed
	_, err := s.db.ExecContext(ctx, `
		UPDATE deployments SET status = $2, report = COALESCE($3, report),
			finished_at = CASE WHEN $4 THEN now() ELSE finished_at END
		WHERE id = $1`, id, status, nullableJSON(report), finished)
	if err != nil {
		return store.NewError(store.KindTransient, "deployment set status", err)
	}
	return nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
