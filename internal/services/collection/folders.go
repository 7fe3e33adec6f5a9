package collection

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pivision/internal/models"
)

// CollectionsDir is the root directory holding one folder per campaign.
func (s *Scheduler) CollectionsDir() string {
	return s.collectionsDir
}

// ListCollections returns every collection folder with image count and total
// size, newest first.
func (s *Scheduler) ListCollections() ([]models.FolderInfo, error) {
	entries, err := os.ReadDir(s.collectionsDir)
	if os.IsNotExist(err) {
		return []models.FolderInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read collections dir: %w", err)
	}

	folders := make([]models.FolderInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(s.collectionsDir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			continue
		}

		var count int
		var size int64
		images, err := os.ReadDir(path)
		if err == nil {
			for _, img := range images {
				if !isImageFile(img.Name()) {
					continue
				}
				count++
				if fi, err := img.Info(); err == nil {
					size += fi.Size()
				}
			}
		}

		folders = append(folders, models.FolderInfo{
			Name:       entry.Name(),
			Path:       path,
			ImageCount: count,
			Size:       size,
			CreatedAt:  info.ModTime(),
		})
	}

	sort.Slice(folders, func(i, j int) bool {
		return folders[i].CreatedAt.After(folders[j].CreatedAt)
	})
	return folders, nil
}

// FolderImages lists the image files in one collection folder, sorted by
// name (capture order, since files are named by epoch millis).
func (s *Scheduler) FolderImages(folderName string) ([]string, error) {
	path, err := s.resolveFolder(folderName)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", folderName, err)
	}

	images := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && isImageFile(entry.Name()) {
			images = append(images, entry.Name())
		}
	}
	sort.Strings(images)
	return images, nil
}

// ImagePath resolves one image inside a collection folder, rejecting path
// traversal in either component.
func (s *Scheduler) ImagePath(folderName, imageName string) (string, error) {
	path, err := s.resolveFolder(folderName)
	if err != nil {
		return "", err
	}
	if imageName != filepath.Base(imageName) || !isImageFile(imageName) {
		return "", fmt.Errorf("invalid image name %q", imageName)
	}
	return filepath.Join(path, imageName), nil
}

// DeleteCollection removes a collection folder and its contents.
func (s *Scheduler) DeleteCollection(folderName string) error {
	path, err := s.resolveFolder(folderName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	activeFolder := s.state.Active && s.state.FolderName == folderName
	s.mu.Unlock()
	if activeFolder {
		return fmt.Errorf("folder %s belongs to the active collection", folderName)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("delete collection %s: %w", folderName, err)
	}
	s.baseLog.Info().Str("folder", folderName).Msg("deleted collection")
	return nil
}

// resolveFolder maps a folder name to its path under the collections dir,
// rejecting anything that is not a plain directory name.
func (s *Scheduler) resolveFolder(name string) (string, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid folder name %q", name)
	}
	return filepath.Join(s.collectionsDir, name), nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
