package api

import (
	"context"

	"sitebuilder/internal/models"
)

// Consumer-driven interfaces: handlers declare exactly what they call, the
// repository and services packages implement them. Both the Postgres and the
// filesystem stores satisfy these.

// PageStore is the page persistence surface used by HTTP handlers.
type PageStore interface {
	ReadPage(ctx context.Context, slug string) (*models.Page, error)
	WritePage(ctx context.Context, slug string, draft *models.PageDraft) (*models.Page, error)
	PublishPage(ctx context.Context, slug, updatedBy string) (*models.Page, error)
	ListPages(ctx context.Context) ([]*models.Page, error)
	DeletePage(ctx context.Context, slug string) error
	ListVersions(ctx context.Context, slug string, limit int) ([]*models.PageVersion, error)
}

// LibraryStore is the component-palette surface used by HTTP handlers.
type LibraryStore interface {
	ListEntries(ctx context.Context) ([]*models.ComponentLibraryEntry, error)
	GetEntry(ctx context.Context, id string) (*models.ComponentLibraryEntry, error)
	CreateEntry(ctx context.Context, entry *models.ComponentLibraryEntry) (*models.ComponentLibraryEntry, error)
	UpdateEntry(ctx context.Context, id string, update *models.ComponentLibraryUpdate) (*models.ComponentLibraryEntry, error)
	DeleteEntry(ctx context.Context, id string) error
}

// UserStore is the account surface used by HTTP handlers.
type UserStore interface {
	CreateUser(ctx context.Context, create *models.UserCreate) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateUser(ctx context.Context, id string, update *models.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Uploader stores base64 images and returns their public URL.
type Uploader interface {
	UploadFromBase64(filename, dataURL string) (string, error)
}

// VersionSink queues a version snapshot after an explicit REST save.
type VersionSink interface {
	SubmitVersion(slug string, version int, components []models.Component, savedBy string) error
}
