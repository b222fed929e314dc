package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"sitebuilder/internal/models"

	"github.com/fsnotify/fsnotify"
	"github.com/segmentio/ksuid"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// FilePageRepositoryImpl is the filesystem fallback store: one JSON file per
// page slug under <root>/pages, version snapshots under <root>/versions. A
// fsnotify watcher invalidates the in-memory cache when files change on
// disk, so edits made outside the server (seed scripts, git checkouts) are
// picked up live.
type FilePageRepositoryImpl struct {
	root string

	mu    sync.RWMutex
	cache map[string]*models.Page

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewFilePageRepository prepares the data directory layout and starts the
// change watcher. The watcher is best-effort: failure to start it degrades
// to cache-less operation, not an error.
func NewFilePageRepository(root string) (*FilePageRepositoryImpl, error) {
	for _, dir := range []string{pagesDir(root), versionsDir(root)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir %q: %w", dir, err)
		}
	}

	r := &FilePageRepositoryImpl{
		root:  root,
		cache: make(map[string]*models.Page),
		done:  make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  File store: watcher unavailable: %v (cache disabled)", err)
		return r, nil
	}
	if err := watcher.Add(pagesDir(root)); err != nil {
		log.Printf("⚠️  File store: cannot watch %q: %v (cache disabled)", pagesDir(root), err)
		watcher.Close()
		return r, nil
	}
	r.watcher = watcher
	go r.watch()

	log.Printf("✓ File page store ready at %s", root)
	return r, nil
}

func pagesDir(root string) string    { return filepath.Join(root, "pages") }
func versionsDir(root string) string { return filepath.Join(root, "versions") }

func (r *FilePageRepositoryImpl) pagePath(slug string) string {
	return filepath.Join(pagesDir(r.root), slug+".json")
}

func (r *FilePageRepositoryImpl) versionsPath(slug string) string {
	return filepath.Join(versionsDir(r.root), slug+".json")
}

// watch drops cache entries whose backing file changed on disk.
func (r *FilePageRepositoryImpl) watch() {
	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			slug := strings.TrimSuffix(filepath.Base(event.Name), ".json")
			r.mu.Lock()
			delete(r.cache, slug)
			r.mu.Unlock()
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  File store watcher: %v", err)
		}
	}
}

// Close stops the watcher.
func (r *FilePageRepositoryImpl) Close() error {
	r.once.Do(func() { close(r.done) })
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

func validSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("invalid page slug: %q", slug)
	}
	return nil
}

// ReadPage returns the page for slug, or (nil, nil) when no file exists.
func (r *FilePageRepositoryImpl) ReadPage(ctx context.Context, slug string) (*models.Page, error) {
	if err := validSlug(slug); err != nil {
		return nil, err
	}

	r.mu.RLock()
	cached, ok := r.cache[slug]
	r.mu.RUnlock()
	if ok {
		cp := *cached
		return &cp, nil
	}

	var page models.Page
	err := readJSONFile(r.pagePath(slug), &page)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read page %q: %w", slug, err)
	}

	r.mu.Lock()
	r.cache[slug] = &page
	r.mu.Unlock()

	cp := page
	return &cp, nil
}

// WritePage creates or updates the draft file for slug atomically.
func (r *FilePageRepositoryImpl) WritePage(ctx context.Context, slug string, draft *models.PageDraft) (*models.Page, error) {
	if err := validSlug(slug); err != nil {
		return nil, err
	}

	current, err := r.ReadPage(ctx, slug)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	page := current
	if page == nil {
		page = &models.Page{
			Slug:      slug,
			Status:    models.StatusDraft,
			Version:   1,
			CreatedAt: now,
		}
	}
	page.Components = draft.Components
	if page.Components == nil {
		page.Components = []models.Component{}
	}
	if draft.Title != nil {
		page.Title = draft.Title
	}
	if draft.UpdatedBy != "" {
		page.UpdatedBy = draft.UpdatedBy
	}
	page.UpdatedAt = now

	if err := writeJSONFile(r.pagePath(slug), page); err != nil {
		return nil, fmt.Errorf("failed to write page %q: %w", slug, err)
	}

	r.mu.Lock()
	cp := *page
	r.cache[slug] = &cp
	r.mu.Unlock()

	out := *page
	return &out, nil
}

// PublishPage promotes the draft file to published and bumps the version.
func (r *FilePageRepositoryImpl) PublishPage(ctx context.Context, slug, updatedBy string) (*models.Page, error) {
	page, err := r.ReadPage(ctx, slug)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("page not found: %s", slug)
	}

	page.Status = models.StatusPublished
	page.Version++
	if updatedBy != "" {
		page.UpdatedBy = updatedBy
	}
	page.UpdatedAt = time.Now().UTC()

	if err := writeJSONFile(r.pagePath(slug), page); err != nil {
		return nil, fmt.Errorf("failed to publish page %q: %w", slug, err)
	}

	r.mu.Lock()
	cp := *page
	r.cache[slug] = &cp
	r.mu.Unlock()

	out := *page
	return &out, nil
}

// ListPages scans the pages directory, most recently updated first.
func (r *FilePageRepositoryImpl) ListPages(ctx context.Context) ([]*models.Page, error) {
	entries, err := os.ReadDir(pagesDir(r.root))
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	var pages []*models.Page
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		slug := strings.TrimSuffix(e.Name(), ".json")
		page, err := r.ReadPage(ctx, slug)
		if err != nil || page == nil {
			continue
		}
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].UpdatedAt.After(pages[j].UpdatedAt)
	})
	return pages, nil
}

// DeletePage removes the page file and its version history.
func (r *FilePageRepositoryImpl) DeletePage(ctx context.Context, slug string) error {
	if err := validSlug(slug); err != nil {
		return err
	}
	if err := os.Remove(r.pagePath(slug)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("page not found: %s", slug)
		}
		return fmt.Errorf("failed to delete page %q: %w", slug, err)
	}
	_ = os.Remove(r.versionsPath(slug))

	r.mu.Lock()
	delete(r.cache, slug)
	r.mu.Unlock()
	return nil
}

// AppendVersion appends one snapshot to the slug's version file.
func (r *FilePageRepositoryImpl) AppendVersion(ctx context.Context, v *models.PageVersion) error {
	if err := validSlug(v.Slug); err != nil {
		return err
	}
	if v.ID == "" {
		v.ID = ksuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	var versions []*models.PageVersion
	if err := readJSONFile(r.versionsPath(v.Slug), &versions); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read versions for %q: %w", v.Slug, err)
	}
	versions = append(versions, v)

	if err := writeJSONFile(r.versionsPath(v.Slug), versions); err != nil {
		return fmt.Errorf("failed to append version for %q: %w", v.Slug, err)
	}
	return nil
}

// ListVersions returns the newest limit snapshots for slug.
func (r *FilePageRepositoryImpl) ListVersions(ctx context.Context, slug string, limit int) ([]*models.PageVersion, error) {
	if err := validSlug(slug); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	var versions []*models.PageVersion
	if err := readJSONFile(r.versionsPath(slug), &versions); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read versions for %q: %w", slug, err)
	}

	// Stored oldest-first; return newest-first like the database store.
	sort.Slice(versions, func(i, j int) bool { return versions[i].ID > versions[j].ID })
	if len(versions) > limit {
		versions = versions[:limit]
	}
	return versions, nil
}

// PruneVersions keeps the newest keep snapshots per page.
func (r *FilePageRepositoryImpl) PruneVersions(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(versionsDir(r.root))
	if err != nil {
		return fmt.Errorf("failed to scan versions dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(versionsDir(r.root), e.Name())
		var versions []*models.PageVersion
		if err := readJSONFile(path, &versions); err != nil {
			continue
		}
		if len(versions) <= keep {
			continue
		}
		sort.Slice(versions, func(i, j int) bool { return versions[i].ID > versions[j].ID })
		if err := writeJSONFile(path, versions[:keep]); err != nil {
			return fmt.Errorf("failed to prune %q: %w", path, err)
		}
	}
	return nil
}

// readJSONFile decodes one JSON file into dst.
func readJSONFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// writeJSONFile writes JSON atomically: temp file in the same directory,
// then rename, so readers and the watcher never observe a partial write.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
