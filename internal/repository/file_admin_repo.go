package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sitebuilder/internal/models"

	"github.com/segmentio/ksuid"
)

// FileAdminRepositoryImpl backs the users and component-library endpoints
// when the filesystem store is active: one JSON array per concern under the
// data directory. Writes go through the same atomic temp-and-rename path as
// pages.
type FileAdminRepositoryImpl struct {
	root string
	mu   sync.Mutex
}

// NewFileAdminRepository prepares the admin store and seeds the component
// library with the built-in palette when the file is absent.
func NewFileAdminRepository(root string) (*FileAdminRepositoryImpl, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %q: %w", root, err)
	}
	r := &FileAdminRepositoryImpl{root: root}

	if _, err := os.Stat(r.libraryPath()); os.IsNotExist(err) {
		entries := models.DefaultLibrary()
		now := time.Now().UTC()
		for i := range entries {
			entries[i].ID = ksuid.New().String()
			entries[i].CreatedAt = now
			entries[i].UpdatedAt = now
		}
		if err := writeJSONFile(r.libraryPath(), entries); err != nil {
			return nil, fmt.Errorf("failed to seed component library: %w", err)
		}
	}
	return r, nil
}

func (r *FileAdminRepositoryImpl) usersPath() string   { return filepath.Join(r.root, "users.json") }
func (r *FileAdminRepositoryImpl) libraryPath() string { return filepath.Join(r.root, "components.json") }

func (r *FileAdminRepositoryImpl) loadUsers() ([]*models.User, error) {
	var users []*models.User
	if err := readJSONFile(r.usersPath(), &users); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	return users, nil
}

func (r *FileAdminRepositoryImpl) loadLibrary() ([]*models.ComponentLibraryEntry, error) {
	var entries []*models.ComponentLibraryEntry
	if err := readJSONFile(r.libraryPath(), &entries); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read component library: %w", err)
	}
	return entries, nil
}

// User store

func (r *FileAdminRepositoryImpl) CreateUser(ctx context.Context, create *models.UserCreate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.loadUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == create.Email {
			return nil, fmt.Errorf("user already exists: %s", create.Email)
		}
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:        ksuid.New().String(),
		Email:     create.Email,
		Name:      create.Name,
		Role:      create.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if user.Role == "" {
		user.Role = "editor"
	}
	users = append(users, user)
	if err := writeJSONFile(r.usersPath(), users); err != nil {
		return nil, fmt.Errorf("failed to write users: %w", err)
	}
	return user, nil
}

func (r *FileAdminRepositoryImpl) GetUser(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.loadUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user not found: %s", id)
}

func (r *FileAdminRepositoryImpl) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.loadUsers()
	if err != nil {
		return nil, err
	}
	if offset >= len(users) {
		return nil, nil
	}
	users = users[offset:]
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *FileAdminRepositoryImpl) UpdateUser(ctx context.Context, id string, update *models.UserUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.loadUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID != id {
			continue
		}
		if update.Email != nil {
			u.Email = *update.Email
		}
		if update.Name != nil {
			u.Name = *update.Name
		}
		if update.Role != nil {
			u.Role = *update.Role
		}
		u.UpdatedAt = time.Now().UTC()
		if err := writeJSONFile(r.usersPath(), users); err != nil {
			return nil, fmt.Errorf("failed to write users: %w", err)
		}
		cp := *u
		return &cp, nil
	}
	return nil, fmt.Errorf("user not found: %s", id)
}

func (r *FileAdminRepositoryImpl) DeleteUser(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.loadUsers()
	if err != nil {
		return err
	}
	for i, u := range users {
		if u.ID == id {
			users = append(users[:i], users[i+1:]...)
			if err := writeJSONFile(r.usersPath(), users); err != nil {
				return fmt.Errorf("failed to write users: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("user not found: %s", id)
}

// Component library store

func (r *FileAdminRepositoryImpl) ListEntries(ctx context.Context) ([]*models.ComponentLibraryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLibrary()
}

func (r *FileAdminRepositoryImpl) GetEntry(ctx context.Context, id string) (*models.ComponentLibraryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.loadLibrary()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("library entry not found: %s", id)
}

func (r *FileAdminRepositoryImpl) CreateEntry(ctx context.Context, entry *models.ComponentLibraryEntry) (*models.ComponentLibraryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.loadLibrary()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Type == entry.Type {
			return nil, fmt.Errorf("library entry already exists: %s", entry.Type)
		}
	}

	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = ksuid.New().String()
	}
	entry.CreatedAt = now
	entry.UpdatedAt = now
	entries = append(entries, entry)
	if err := writeJSONFile(r.libraryPath(), entries); err != nil {
		return nil, fmt.Errorf("failed to write component library: %w", err)
	}
	return entry, nil
}

func (r *FileAdminRepositoryImpl) UpdateEntry(ctx context.Context, id string, update *models.ComponentLibraryUpdate) (*models.ComponentLibraryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.loadLibrary()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.ID != id {
			continue
		}
		if update.Name != nil {
			e.Name = *update.Name
		}
		if update.Category != nil {
			e.Category = *update.Category
		}
		if update.Description != nil {
			e.Description = *update.Description
		}
		if update.Icon != nil {
			e.Icon = *update.Icon
		}
		if update.PropsTemplate != nil {
			e.PropsTemplate = update.PropsTemplate
		}
		e.UpdatedAt = time.Now().UTC()
		if err := writeJSONFile(r.libraryPath(), entries); err != nil {
			return nil, fmt.Errorf("failed to write component library: %w", err)
		}
		cp := *e
		return &cp, nil
	}
	return nil, fmt.Errorf("library entry not found: %s", id)
}

func (r *FileAdminRepositoryImpl) DeleteEntry(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.loadLibrary()
	if err != nil {
		return err
	}
	for i, e := range entries {
		if e.ID == id {
			entries = append(entries[:i], entries[i+1:]...)
			if err := writeJSONFile(r.libraryPath(), entries); err != nil {
				return fmt.Errorf("failed to write component library: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("library entry not found: %s", id)
}
