package services

import (
	"context"

	"sitebuilder/internal/models"
)

// Interfaces live with their consumer: this package only names the
// repository methods its services actually call.

// VersionStore is what the publisher needs from persistence.
type VersionStore interface {
	AppendVersion(ctx context.Context, v *models.PageVersion) error
}

// RetentionStore is what the retention job needs from persistence.
type RetentionStore interface {
	PruneVersions(ctx context.Context, keep int) error
}
