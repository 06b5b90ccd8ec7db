// Package archive provides file-based storage for named report archives,
// used to keep analysis reports across deployments for later comparison.
package archive

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/driftwatch/driftwatch/pkg/models"
)

// Default configuration values
const (
	DefaultArchiveDir     = "./data/archives"
	DefaultMaxArchiveSize = 50 * 1024 * 1024 // 50MB
	DefaultMaxArchives    = 50
	ArchiveFileExtension  = ".json.gz"
	CurrentVersion        = 1
)

// Config contains archive storage configuration.
type Config struct {
	// ArchiveDir is the directory where archives are stored
	ArchiveDir string

	// MaxArchiveSize is the maximum size of a single archive in bytes
	MaxArchiveSize int64

	// MaxArchives is the maximum number of archives to keep
	MaxArchives int
}

// DefaultConfig returns the default archive storage configuration.
func DefaultConfig() Config {
	return Config{
		ArchiveDir:     DefaultArchiveDir,
		MaxArchiveSize: DefaultMaxArchiveSize,
		MaxArchives:    DefaultMaxArchives,
	}
}

// Store is a file-based archive storage.
type Store struct {
	config Config
	mu     sync.RWMutex
}

// New creates a new archive store with default configuration.
func New() (*Store, error) {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new archive store with the given configuration.
func NewWithConfig(config Config) (*Store, error) {
	if err := os.MkdirAll(config.ArchiveDir, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	return &Store{
		config: config,
	}, nil
}

// Save saves an archive to disk.
func (s *Store) Save(ctx context.Context, arc *models.ReportArchive) error {
	if arc == nil {
		return errors.New("archive cannot be nil")
	}
	if arc.Report == nil {
		return errors.New("archive report cannot be nil")
	}

	if err := models.ValidateArchiveName(arc.Name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check if we've reached the archive limit
	archives, err := s.listMetadataLocked()
	if err != nil {
		return fmt.Errorf("listing archives: %w", err)
	}

	// Overwriting an existing archive never counts against the limit
	exists := false
	for _, meta := range archives {
		if meta.Name == arc.Name {
			exists = true
			break
		}
	}

	if !exists && len(archives) >= s.config.MaxArchives {
		return models.ErrTooManyArchives
	}

	arc.Version = CurrentVersion
	if arc.Created.IsZero() {
		arc.Created = time.Now().UTC()
	}

	data, err := json.Marshal(arc)
	if err != nil {
		return fmt.Errorf("marshaling archive: %w", err)
	}

	if int64(len(data)) > s.config.MaxArchiveSize {
		return models.ErrArchiveTooLarge
	}

	filePath := s.archivePath(arc.Name)
	if err := s.writeGzip(filePath, data); err != nil {
		return fmt.Errorf("writing archive file: %w", err)
	}

	return nil
}

// Load loads an archive from disk.
func (s *Store) Load(ctx context.Context, name string) (*models.ReportArchive, error) {
	if err := models.ValidateArchiveName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filePath := s.archivePath(name)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, models.ErrArchiveNotFound
	}

	data, err := s.readGzip(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading archive file: %w", err)
	}

	var arc models.ReportArchive
	if err := json.Unmarshal(data, &arc); err != nil {
		return nil, fmt.Errorf("unmarshaling archive: %w", err)
	}

	return &arc, nil
}

// Delete removes an archive from disk.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := models.ValidateArchiveName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.archivePath(name)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return models.ErrArchiveNotFound
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("removing archive file: %w", err)
	}

	return nil
}

// List returns metadata for all saved archives, newest first.
func (s *Store) List(ctx context.Context) ([]*models.ArchiveMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listMetadataLocked()
}

// Exists checks if an archive exists.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	if err := models.ValidateArchiveName(name); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.archivePath(name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// archivePath returns the file path for an archive.
func (s *Store) archivePath(name string) string {
	return filepath.Join(s.config.ArchiveDir, name+ArchiveFileExtension)
}

// listMetadataLocked lists all archive metadata (must hold lock).
func (s *Store) listMetadataLocked() ([]*models.ArchiveMetadata, error) {
	entries, err := os.ReadDir(s.config.ArchiveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading archive directory: %w", err)
	}

	var archives []*models.ArchiveMetadata

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ArchiveFileExtension) {
			continue
		}

		archiveName := strings.TrimSuffix(name, ArchiveFileExtension)

		info, err := entry.Info()
		if err != nil {
			continue // Skip files we can't stat
		}

		filePath := filepath.Join(s.config.ArchiveDir, name)
		data, err := s.readGzip(filePath)
		if err != nil {
			continue // Skip corrupted files
		}

		var arc models.ReportArchive
		if err := json.Unmarshal(data, &arc); err != nil {
			continue // Skip corrupted files
		}

		meta := &models.ArchiveMetadata{
			Name:        archiveName,
			Description: arc.Description,
			Created:     arc.Created,
			SizeBytes:   info.Size(),
		}
		if arc.Report != nil {
			meta.Summary = arc.Report.Summary
		}
		archives = append(archives, meta)
	}

	// Sort by created time, newest first
	sort.Slice(archives, func(i, j int) bool {
		return archives[i].Created.After(archives[j].Created)
	})

	return archives, nil
}

// writeGzip writes data to a gzip-compressed file.
func (s *Store) writeGzip(path string, data []byte) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	gw := gzip.NewWriter(file)
	defer gw.Close()

	if _, err := gw.Write(data); err != nil {
		return err
	}

	return gw.Close()
}

// readGzip reads data from a gzip-compressed file.
func (s *Store) readGzip(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gr, err := gzip.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}
