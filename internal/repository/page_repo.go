package repository

import (
	"context"
	"errors"
	"fmt"

	"sitebuilder/internal/models"

	"gorm.io/gorm"
)

// PageRepositoryImpl handles page persistence on Postgres using GORM. It is
// the Supabase-backed store: the pages / page_versions tables match the
// hosted schema, so the dashboard can point at either.
type PageRepositoryImpl struct {
	db *gorm.DB
}

// NewPageRepository creates a new page repository.
// Returns concrete type - "Accept interfaces, return structs".
func NewPageRepository(db *gorm.DB) *PageRepositoryImpl {
	return &PageRepositoryImpl{db: db}
}

// ReadPage returns the page for slug, or (nil, nil) when it doesn't exist.
// Absence is not an error: the editor starts a fresh draft for unknown slugs.
func (r *PageRepositoryImpl) ReadPage(ctx context.Context, slug string) (*models.Page, error) {
	var page models.Page
	err := r.db.WithContext(ctx).First(&page, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read page %q: %w", slug, err)
	}
	return &page, nil
}

// WritePage creates or updates the draft for slug. Status and version are
// untouched here; PublishPage owns both.
func (r *PageRepositoryImpl) WritePage(ctx context.Context, slug string, draft *models.PageDraft) (*models.Page, error) {
	var page models.Page
	err := r.db.WithContext(ctx).First(&page, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		page = models.Page{
			Slug:       slug,
			Title:      draft.Title,
			Components: draft.Components,
			Status:     models.StatusDraft,
			Version:    1,
			UpdatedBy:  draft.UpdatedBy,
		}
		if page.Components == nil {
			page.Components = []models.Component{}
		}
		if err := r.db.WithContext(ctx).Create(&page).Error; err != nil {
			return nil, fmt.Errorf("failed to create page %q: %w", slug, err)
		}
		return &page, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find page %q: %w", slug, err)
	}

	page.Components = draft.Components
	if page.Components == nil {
		page.Components = []models.Component{}
	}
	updates := map[string]interface{}{
		"components_json": page.Components,
	}
	if draft.Title != nil {
		page.Title = draft.Title
		updates["title_json"] = page.Title
	}
	if draft.UpdatedBy != "" {
		page.UpdatedBy = draft.UpdatedBy
		updates["updated_by"] = draft.UpdatedBy
	}

	if err := r.db.WithContext(ctx).Model(&page).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update page %q: %w", slug, err)
	}
	return &page, nil
}

// PublishPage promotes the current draft to published and bumps the version.
func (r *PageRepositoryImpl) PublishPage(ctx context.Context, slug, updatedBy string) (*models.Page, error) {
	var page models.Page
	err := r.db.WithContext(ctx).First(&page, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("page not found: %s", slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find page %q: %w", slug, err)
	}

	page.Status = models.StatusPublished
	page.Version++
	updates := map[string]interface{}{
		"status":  page.Status,
		"version": page.Version,
	}
	if updatedBy != "" {
		page.UpdatedBy = updatedBy
		updates["updated_by"] = updatedBy
	}

	if err := r.db.WithContext(ctx).Model(&page).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to publish page %q: %w", slug, err)
	}
	return &page, nil
}

// ListPages returns all pages, most recently updated first.
func (r *PageRepositoryImpl) ListPages(ctx context.Context) ([]*models.Page, error) {
	var pages []*models.Page
	err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Find(&pages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	return pages, nil
}

// DeletePage soft-deletes the page.
func (r *PageRepositoryImpl) DeletePage(ctx context.Context, slug string) error {
	result := r.db.WithContext(ctx).Delete(&models.Page{}, "slug = ?", slug)
	if result.Error != nil {
		return fmt.Errorf("failed to delete page %q: %w", slug, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("page not found: %s", slug)
	}
	return nil
}

// AppendVersion stores one version snapshot.
func (r *PageRepositoryImpl) AppendVersion(ctx context.Context, v *models.PageVersion) error {
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("failed to append version for %q: %w", v.Slug, err)
	}
	return nil
}

// ListVersions returns the newest limit snapshots for slug. KSUIDs are
// time-ordered so sorting by id is sorting by creation time.
func (r *PageRepositoryImpl) ListVersions(ctx context.Context, slug string, limit int) ([]*models.PageVersion, error) {
	if limit <= 0 {
		limit = 20
	}
	var versions []*models.PageVersion
	err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		Order("id DESC").
		Limit(limit).
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list versions for %q: %w", slug, err)
	}
	return versions, nil
}

// PruneVersions keeps the newest keep snapshots per page and deletes the rest.
func (r *PageRepositoryImpl) PruneVersions(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}

	var slugs []string
	if err := r.db.WithContext(ctx).
		Model(&models.PageVersion{}).
		Distinct("slug").
		Pluck("slug", &slugs).Error; err != nil {
		return fmt.Errorf("failed to enumerate versioned pages: %w", err)
	}

	for _, slug := range slugs {
		var keepIDs []string
		if err := r.db.WithContext(ctx).
			Model(&models.PageVersion{}).
			Where("slug = ?", slug).
			Order("id DESC").
			Limit(keep).
			Pluck("id", &keepIDs).Error; err != nil {
			return fmt.Errorf("failed to select versions to keep for %q: %w", slug, err)
		}
		if err := r.db.WithContext(ctx).
			Where("slug = ? AND id NOT IN ?", slug, keepIDs).
			Delete(&models.PageVersion{}).Error; err != nil {
			return fmt.Errorf("failed to prune versions for %q: %w", slug, err)
		}
	}
	return nil
}
