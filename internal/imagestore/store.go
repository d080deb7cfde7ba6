// Package imagestore validates and persists uploaded listing images.
package imagestore

import (
	"bytes"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "golang.org/x/image/webp" // register decoder
)

// DefaultMaxBytes matches the upload limit of the dashboard.
const DefaultMaxBytes = 16 * 1024 * 1024

var (
	// ErrEmpty is returned for zero-length uploads.
	ErrEmpty = eris.New("imagestore: empty image")
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = eris.New("imagestore: image too large")
	// ErrNotImage is returned when the payload is not a supported image.
	ErrNotImage = eris.New("imagestore: unsupported image format")
)

// extensions lists accepted formats by MIME type.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DetectMIME sniffs the MIME type of image data, defaulting to image/jpeg for
// anything unrecognised.
func DetectMIME(data []byte) string {
	ct := http.DetectContentType(data)
	if _, ok := extensions[ct]; ok {
		return ct
	}
	return "image/jpeg"
}

// Saved describes a stored image.
type Saved struct {
	URL      string
	Path     string
	MIMEType string
	Width    int
	Height   int
}

// Store writes images to a local directory served under URLPrefix.
type Store struct {
	dir       string
	urlPrefix string
	maxBytes  int
}

// New creates the upload directory if needed.
func New(dir, urlPrefix string, maxBytes int) (*Store, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "imagestore: create dir %s", dir)
	}
	return &Store{dir: dir, urlPrefix: urlPrefix, maxBytes: maxBytes}, nil
}

// Dir returns the directory images are written to.
func (s *Store) Dir() string {
	return s.dir
}

// MaxBytes returns the upload size limit.
func (s *Store) MaxBytes() int {
	return s.maxBytes
}

// Validate checks size and decodes the image header. It returns the MIME type
// and dimensions.
func (s *Store) Validate(data []byte) (Saved, error) {
	if len(data) == 0 {
		return Saved{}, ErrEmpty
	}
	if len(data) > s.maxBytes {
		return Saved{}, ErrTooLarge
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Saved{}, eris.Wrap(ErrNotImage, err.Error())
	}
	mime := "image/" + format
	if _, ok := extensions[mime]; !ok {
		return Saved{}, ErrNotImage
	}
	return Saved{MIMEType: mime, Width: cfg.Width, Height: cfg.Height}, nil
}

// Save validates data and writes it under a random name.
func (s *Store) Save(data []byte) (Saved, error) {
	saved, err := s.Validate(data)
	if err != nil {
		return Saved{}, err
	}

	name := uuid.New().String() + extensions[saved.MIMEType]
	saved.Path = filepath.Join(s.dir, name)
	if err := os.WriteFile(saved.Path, data, 0o644); err != nil {
		return Saved{}, eris.Wrapf(err, "imagestore: write %s", name)
	}
	saved.URL = path.Join(s.urlPrefix, name)
	return saved, nil
}

// Load reads back an image previously returned by Save. Only the base name of
// url is used, so it cannot escape the upload directory.
func (s *Store) Load(url string) ([]byte, error) {
	if !strings.HasPrefix(url, s.urlPrefix) {
		return nil, eris.Errorf("imagestore: %s is not a local upload", url)
	}
	name := filepath.Base(url)
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, eris.Wrapf(err, "imagestore: read %s", name)
	}
	return data, nil
}
