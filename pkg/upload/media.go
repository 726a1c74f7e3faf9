package upload

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"marinehub/pkg/domain"
)

const (
	MaxImageBytes int64 = 10 << 20
	MaxVideoBytes int64 = 50 << 20

	sniffBytes = 3072
)

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".heic": {}, ".heif": {}, ".bmp": {},
}

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".avi": {}, ".webm": {}, ".mkv": {}, ".m4v": {}, ".3gp": {},
}

// File is one file handed to the uploader.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Prepared is a validated file ready for a backend.
type Prepared struct {
	File
	Kind domain.MediaKind
}

// Classify decides the media kind from the declared MIME type, then the
// filename extension, then the content head.
func Classify(name, declared string, head []byte) (domain.MediaKind, error) {
	declared = strings.ToLower(strings.TrimSpace(declared))
	switch {
	case strings.HasPrefix(declared, "image/"):
		return domain.MediaImage, nil
	case strings.HasPrefix(declared, "video/"):
		return domain.MediaVideo, nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := imageExtensions[ext]; ok {
		return domain.MediaImage, nil
	}
	if _, ok := videoExtensions[ext]; ok {
		return domain.MediaVideo, nil
	}
	if len(head) > 0 {
		detected := mimetype.Detect(head).String()
		switch {
		case strings.HasPrefix(detected, "image/"):
			return domain.MediaImage, nil
		case strings.HasPrefix(detected, "video/"):
			return domain.MediaVideo, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, name)
}

// LimitFor returns the byte ceiling for kind.
func LimitFor(kind domain.MediaKind) int64 {
	if kind == domain.MediaVideo {
		return MaxVideoBytes
	}
	return MaxImageBytes
}

// Prepare classifies f and checks its size. It reads at most a small head
// of the content, and only when name and MIME type are inconclusive.
func Prepare(f File) (Prepared, error) {
	kind, err := Classify(f.Name, f.ContentType, nil)
	if err != nil && f.Content != nil {
		head := make([]byte, sniffBytes)
		n, readErr := io.ReadFull(f.Content, head)
		if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
			return Prepared{}, fmt.Errorf("read %q: %w", f.Name, readErr)
		}
		head = head[:n]
		f.Content = io.MultiReader(bytes.NewReader(head), f.Content)
		kind, err = Classify(f.Name, f.ContentType, head)
	}
	if err != nil {
		return Prepared{}, err
	}
	limit := LimitFor(kind)
	if f.Size > limit {
		return Prepared{}, &SizeError{Filename: f.Name, Kind: string(kind), Size: f.Size, Limit: limit}
	}
	if f.Content != nil {
		if f.Size <= 0 {
			return Prepared{}, fmt.Errorf("%w: %s", ErrUnknownSize, f.Name)
		}
		f.Content = &cappedReader{r: f.Content, left: f.Size, name: f.Name, kind: kind, limit: limit}
	}
	return Prepared{File: f, Kind: kind}, nil
}

// cappedReader fails once the body runs past its declared size.
type cappedReader struct {
	r     io.Reader
	left  int64
	read  int64
	name  string
	kind  domain.MediaKind
	limit int64
}

func (c *cappedReader) Read(b []byte) (int, error) {
	if c.left < 0 {
		return 0, c.overflow()
	}
	if int64(len(b)) > c.left+1 {
		b = b[:c.left+1]
	}
	n, err := c.r.Read(b)
	c.read += int64(n)
	c.left -= int64(n)
	if c.left < 0 {
		return n - 1, c.overflow()
	}
	return n, err
}

func (c *cappedReader) overflow() error {
	return &SizeError{Filename: c.name, Kind: string(c.kind), Size: c.read, Limit: c.limit}
}
