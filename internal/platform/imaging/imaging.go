// Package imaging stores chest X-ray images attached to screening cases.
// It defines the Store interface, an in-memory implementation for tests and
// development, and a filesystem implementation for deployments.
package imaging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrImageNotFound   = errors.New("image not found")
	ErrImageTooLarge   = errors.New("image exceeds maximum allowed size")
	ErrInvalidImage    = errors.New("image must be a jpg or jpeg file")
	ErrMissingFileName = errors.New("file name is required")
)

// MaxImageSize is the maximum allowed image size in bytes (10 MB).
const MaxImageSize = 10 * 1024 * 1024

// allowedExtensions lists the accepted upload file extensions. The upstream
// classifier only accepts JPEG input, so everything else is rejected at the
// door.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
}

// ValidFileName reports whether name carries an accepted image extension.
func ValidFileName(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Metadata describes a stored image.
type Metadata struct {
	Ref       string    `json:"ref"`
	FileName  string    `json:"file_name"`
	Size      int64     `json:"size"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the contract for image storage backends.
type Store interface {
	// Put validates and stores the image, returning its metadata. The Ref
	// is an opaque key for later retrieval.
	Put(ctx context.Context, fileName string, content io.Reader) (*Metadata, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, *Metadata, error)
	Delete(ctx context.Context, ref string) error
}

// readValidated reads content under the size cap and enforces the file name
// rules shared by all backends.
func readValidated(fileName string, content io.Reader) ([]byte, error) {
	if fileName == "" {
		return nil, ErrMissingFileName
	}
	if !ValidFileName(fileName) {
		return nil, ErrInvalidImage
	}
	data, err := io.ReadAll(io.LimitReader(content, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedImage struct {
	metadata Metadata
	content  []byte
}

// MemoryStore is a thread-safe, in-memory Store for tests and development.
type MemoryStore struct {
	mu     sync.RWMutex
	images map[string]*storedImage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{images: make(map[string]*storedImage)}
}

func (s *MemoryStore) Put(_ context.Context, fileName string, content io.Reader) (*Metadata, error) {
	data, err := readValidated(fileName, content)
	if err != nil {
		return nil, err
	}

	h := sha256.Sum256(data)
	meta := Metadata{
		Ref:       uuid.New().String() + strings.ToLower(filepath.Ext(fileName)),
		FileName:  fileName,
		Size:      int64(len(data)),
		Hash:      fmt.Sprintf("%x", h),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.images[meta.Ref] = &storedImage{metadata: meta, content: data}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *MemoryStore) Open(_ context.Context, ref string) (io.ReadCloser, *Metadata, error) {
	s.mu.RLock()
	img, ok := s.images[ref]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrImageNotFound
	}
	meta := img.metadata
	return io.NopCloser(bytes.NewReader(img.content)), &meta, nil
}

func (s *MemoryStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[ref]; !ok {
		return ErrImageNotFound
	}
	delete(s.images, ref)
	return nil
}

// ---------------------------------------------------------------------------
// Filesystem implementation
// ---------------------------------------------------------------------------

// DiskStore persists images under a root directory, one file per ref.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating image root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

// path resolves ref inside the root, rejecting traversal.
func (s *DiskStore) path(ref string) (string, error) {
	if ref == "" || strings.Contains(ref, "/") || strings.Contains(ref, "\\") || strings.Contains(ref, "..") {
		return "", ErrImageNotFound
	}
	return filepath.Join(s.root, ref), nil
}

func (s *DiskStore) Put(_ context.Context, fileName string, content io.Reader) (*Metadata, error) {
	data, err := readValidated(fileName, content)
	if err != nil {
		return nil, err
	}

	h := sha256.Sum256(data)
	meta := Metadata{
		Ref:       uuid.New().String() + strings.ToLower(filepath.Ext(fileName)),
		FileName:  fileName,
		Size:      int64(len(data)),
		Hash:      fmt.Sprintf("%x", h),
		CreatedAt: time.Now().UTC(),
	}

	p, err := s.path(meta.Ref)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing image: %w", err)
	}
	return &meta, nil
}

func (s *DiskStore) Open(_ context.Context, ref string) (io.ReadCloser, *Metadata, error) {
	p, err := s.path(ref)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrImageNotFound
		}
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	meta := Metadata{
		Ref:       ref,
		FileName:  ref,
		Size:      info.Size(),
		CreatedAt: info.ModTime().UTC(),
	}
	return f, &meta, nil
}

func (s *DiskStore) Delete(_ context.Context, ref string) error {
	p, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return ErrImageNotFound
		}
		return err
	}
	return nil
}
