package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yourorg/course-template-service/internal/config"
	"github.com/yourorg/course-template-service/internal/model"
)

// LocalStorage implements the Storage interface for local filesystem
type LocalStorage struct {
	basePath    string
	permissions os.FileMode
}

// NewLocalStorage creates a new LocalStorage
func NewLocalStorage(cfg *config.LocalStorageConfig) (*LocalStorage, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	// Parse permissions string
	perms, err := strconv.ParseUint(cfg.Permissions, 8, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid permissions format: %w", err)
	}

	return &LocalStorage{
		basePath:    cfg.BasePath,
		permissions: os.FileMode(perms),
	}, nil
}

func (s *LocalStorage) contentPath(hash string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(objectKey(hash)))
}

func (s *LocalStorage) metaPath(hash string) string {
	return s.contentPath(hash) + ".json"
}

// Store saves a file to the local filesystem
func (s *LocalStorage) Store(ctx context.Context, ref FileRef, r io.Reader, contentType string) (*StoredFile, error) {
	hash := ref.Hash()
	filePath := s.contentPath(hash)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temporary name first so readers never see a partial file
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create destination file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	size, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to copy file content: %w", err)
	}

	if err := os.Chmod(tmpName, s.permissions); err != nil {
		return nil, fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat stored file: %w", err)
	}

	stored := &StoredFile{
		Ref:         ref,
		Hash:        hash,
		Size:        size,
		ContentType: contentType,
		ModTime:     info.ModTime(),
	}

	meta, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode file metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(hash), meta, s.permissions); err != nil {
		return nil, fmt.Errorf("failed to write file metadata: %w", err)
	}

	return stored, nil
}

// Open retrieves a file from the local filesystem
func (s *LocalStorage) Open(ctx context.Context, hash string) (io.ReadCloser, *StoredFile, error) {
	stored, err := s.Stat(ctx, hash)
	if err != nil {
		return nil, nil, err
	}

	file, err := s.OpenContent(ctx, hash)
	if err != nil {
		return nil, nil, err
	}

	return file, stored, nil
}

// OpenContent opens the file content without reading its metadata
func (s *LocalStorage) OpenContent(ctx context.Context, hash string) (io.ReadCloser, error) {
	if !validHash(hash) {
		return nil, fmt.Errorf("file %q: %w", hash, model.ErrNotFound)
	}

	file, err := os.Open(s.contentPath(hash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file %s: %w", hash, model.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Stat reads the metadata stored next to a file
func (s *LocalStorage) Stat(ctx context.Context, hash string) (*StoredFile, error) {
	if !validHash(hash) {
		return nil, fmt.Errorf("file %q: %w", hash, model.ErrNotFound)
	}

	data, err := os.ReadFile(s.metaPath(hash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file %s: %w", hash, model.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read file metadata: %w", err)
	}

	var stored StoredFile
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode file metadata: %w", err)
	}

	if _, err := os.Stat(s.contentPath(hash)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file %s: %w", hash, model.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &stored, nil
}

// Delete removes a file from the local filesystem
func (s *LocalStorage) Delete(ctx context.Context, hash string) error {
	if !validHash(hash) {
		return fmt.Errorf("file %q: %w", hash, model.ErrNotFound)
	}

	err := os.Remove(s.contentPath(hash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("file %s: %w", hash, model.ErrNotFound)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	if err := os.Remove(s.metaPath(hash)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file metadata: %w", err)
	}

	return nil
}

// ctxReader stops a copy once the request context is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
