package repository

import (
	"context"
	"errors"
	"fmt"

	"sitebuilder/internal/models"

	"gorm.io/gorm"
)

// LibraryRepositoryImpl handles the components_library table: the palette of
// component types the editor chrome offers for dragging onto a page.
type LibraryRepositoryImpl struct {
	db *gorm.DB
}

// NewLibraryRepository creates a new component library repository.
func NewLibraryRepository(db *gorm.DB) *LibraryRepositoryImpl {
	return &LibraryRepositoryImpl{db: db}
}

// Seed inserts the built-in palette entries that aren't present yet.
func (r *LibraryRepositoryImpl) Seed(ctx context.Context) error {
	for _, entry := range models.DefaultLibrary() {
		e := entry
		err := r.db.WithContext(ctx).
			Where("type = ?", e.Type).
			FirstOrCreate(&e).Error
		if err != nil {
			return fmt.Errorf("failed to seed library entry %q: %w", e.Type, err)
		}
	}
	return nil
}

// ListEntries returns the whole palette grouped by category ordering.
func (r *LibraryRepositoryImpl) ListEntries(ctx context.Context) ([]*models.ComponentLibraryEntry, error) {
	var entries []*models.ComponentLibraryEntry
	err := r.db.WithContext(ctx).
		Order("category ASC, name ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list library entries: %w", err)
	}
	return entries, nil
}

// GetEntry returns one palette entry by id.
func (r *LibraryRepositoryImpl) GetEntry(ctx context.Context, id string) (*models.ComponentLibraryEntry, error) {
	var entry models.ComponentLibraryEntry
	err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("library entry not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get library entry: %w", err)
	}
	return &entry, nil
}

// CreateEntry inserts a new palette entry.
func (r *LibraryRepositoryImpl) CreateEntry(ctx context.Context, entry *models.ComponentLibraryEntry) (*models.ComponentLibraryEntry, error) {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create library entry: %w", err)
	}
	return entry, nil
}

// UpdateEntry modifies an existing palette entry; nil fields stay unchanged.
func (r *LibraryRepositoryImpl) UpdateEntry(ctx context.Context, id string, update *models.ComponentLibraryUpdate) (*models.ComponentLibraryEntry, error) {
	var entry models.ComponentLibraryEntry
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("library entry not found: %s", id)
		}
		return nil, fmt.Errorf("failed to find library entry: %w", err)
	}

	updates := make(map[string]interface{})
	if update.Name != nil {
		updates["name"] = *update.Name
	}
	if update.Category != nil {
		updates["category"] = *update.Category
	}
	if update.Description != nil {
		updates["description"] = *update.Description
	}
	if update.Icon != nil {
		updates["icon"] = *update.Icon
	}
	if update.PropsTemplate != nil {
		updates["props_template"] = update.PropsTemplate
	}

	if err := r.db.WithContext(ctx).Model(&entry).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update library entry: %w", err)
	}
	return &entry, nil
}

// DeleteEntry removes a palette entry permanently.
func (r *LibraryRepositoryImpl) DeleteEntry(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.ComponentLibraryEntry{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete library entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("library entry not found: %s", id)
	}
	return nil
}
