// Package media normalizes uploaded images and stores them on local disk.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	// Registers the WebP decoder with image.Decode.
	_ "golang.org/x/image/webp"
)

var (
	ErrUnknownKind  = errors.New("media: unknown image type")
	ErrInvalidImage = errors.New("media: payload is not a decodable image")
)

// Kind selects the directory an image is stored under.
type Kind string

const (
	KindProduct  Kind = "product"
	KindCategory Kind = "category"
	KindBrand    Kind = "brand"
	KindProfile  Kind = "profile"
	KindService  Kind = "service"
)

var kinds = map[Kind]bool{
	KindProduct: true, KindCategory: true, KindBrand: true, KindProfile: true, KindService: true,
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !kinds[k] {
		return "", ErrUnknownKind
	}
	return k, nil
}

func (k Kind) dir() string {
	return string(k) + "s"
}

// Store writes normalized JPEGs below Root and hands out URLs below PublicPrefix.
// Images declaring more than maxPixels are refused before any pixel data
// is decoded.
type Store struct {
	root         string
	publicPrefix string
	quality      int
	maxDimension int
	maxPixels    int64
}

func NewStore(root, publicPrefix string, quality, maxDimension int, maxPixels int64) *Store {
	return &Store{
		root:         root,
		publicPrefix: "/" + strings.Trim(publicPrefix, "/"),
		quality:      quality,
		maxDimension: maxDimension,
		maxPixels:    maxPixels,
	}
}

// Root is the directory served as static files.
func (s *Store) Root() string {
	return s.root
}

// Save checks the declared size of r, decodes it (honouring EXIF
// orientation), shrinks it to fit the configured bounding box, re-encodes it
// as JPEG and returns its public URL. Nothing is left on disk when Save fails.
func (s *Store) Save(kind Kind, r io.Reader) (string, error) {
	if !kinds[kind] {
		return "", ErrUnknownKind
	}

	// The header bytes read by DecodeConfig are replayed for the full decode.
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > s.maxPixels {
		return "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidImage, cfg.Width, cfg.Height, s.maxPixels)
	}

	img, err := imaging.Decode(io.MultiReader(&header, r), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	img = imaging.Fit(img, s.maxDimension, s.maxDimension, imaging.Lanczos)

	dir := filepath.Join(s.root, kind.dir())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("media: failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*.tmp")
	if err != nil {
		return "", fmt.Errorf("media: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if err := imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(s.quality)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("media: failed to encode JPEG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("media: failed to flush temp file: %w", err)
	}

	filename := uuid.NewString() + ".jpg"
	if err := os.Rename(tmpName, filepath.Join(dir, filename)); err != nil {
		return "", fmt.Errorf("media: failed to move image into place: %w", err)
	}
	committed = true

	return path.Join(s.publicPrefix, kind.dir(), filename), nil
}
