package ports

import (
	"context"

	"github.com/aretw0/aqueduct/pkg/domain"
)

// SnapshotStore persists workspace graphs between restarts and across replicas.
type SnapshotStore interface {
	// Save persists the snapshot for a given workspace ID, replacing any previous one.
	Save(ctx context.Context, workspaceID string, snap domain.Snapshot) error

	// Load retrieves the snapshot for a given workspace ID.
	// Returns domain.ErrNotFound if the workspace was never saved.
	Load(ctx context.Context, workspaceID string) (domain.Snapshot, error)

	// Delete removes the snapshot for a given workspace ID.
	Delete(ctx context.Context, workspaceID string) error

	// List returns the IDs of all saved workspaces.
	List(ctx context.Context) ([]string, error)
}
