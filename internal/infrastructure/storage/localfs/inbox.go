package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

const ArchiveDir = "processed"

// Inbox is the watch-folder view of the local filesystem.
type Inbox struct{}

func NewInbox() *Inbox {
	return &Inbox{}
}

func (i *Inbox) Ensure(_ context.Context, folder string) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("create watch folder: %w", err)
	}
	return nil
}

// List returns regular, non-hidden files directly inside folder, oldest first.
func (i *Inbox) List(_ context.Context, folder string) ([]domain.InboxFile, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read watch folder: %w", err)
	}

	files := make([]domain.InboxFile, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		files = append(files, domain.InboxFile{
			Path:    filepath.Join(folder, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
		})
	}
	sort.SliceStable(files, func(a, b int) bool {
		if files[a].ModTime.Equal(files[b].ModTime) {
			return files[a].Name < files[b].Name
		}
		return files[a].ModTime.Before(files[b].ModTime)
	})
	return files, nil
}

// Archive moves an ingested file into the processed/ subfolder, adding a
// numeric suffix when the name is taken.
func (i *Inbox) Archive(_ context.Context, file domain.InboxFile) (string, error) {
	dir := filepath.Join(filepath.Dir(file.Path), ArchiveDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	ext := filepath.Ext(file.Name)
	stem := strings.TrimSuffix(file.Name, ext)
	dest := filepath.Join(dir, file.Name)
	for n := 1; ; n++ {
		_, err := os.Lstat(dest)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("stat archive target: %w", err)
		}
		dest = filepath.Join(dir, stem+"_"+strconv.Itoa(n)+ext)
	}

	if err := os.Rename(file.Path, dest); err != nil {
		return "", fmt.Errorf("move to archive: %w", err)
	}
	return dest, nil
}
