package upload

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"marinehub/pkg/domain"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		declared string
		head     []byte
		want     domain.MediaKind
		wantErr  bool
	}{
		{name: "declared image", filename: "blob", declared: "image/jpeg", want: domain.MediaImage},
		{name: "declared video wins over extension", filename: "clip.jpg", declared: "video/mp4", want: domain.MediaVideo},
		{name: "extension video", filename: "engine.MP4", want: domain.MediaVideo},
		{name: "extension image", filename: "hull.heic", want: domain.MediaImage},
		{name: "sniffed png", filename: "upload", declared: "application/octet-stream", head: pngHeader, want: domain.MediaImage},
		{name: "pdf rejected", filename: "invoice.pdf", declared: "application/pdf", head: []byte("%PDF-1.4"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.filename, tt.declared, tt.head)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedMedia) {
					t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrepareEnforcesSizeCeilings(t *testing.T) {
	tests := []struct {
		name    string
		file    File
		wantErr bool
	}{
		{name: "image at limit", file: File{Name: "a.jpg", Size: MaxImageBytes}},
		{name: "image over limit", file: File{Name: "a.jpg", Size: MaxImageBytes + 1}, wantErr: true},
		{name: "video under limit", file: File{Name: "a.mov", Size: 40 << 20}},
		{name: "video over limit", file: File{Name: "a.mov", Size: MaxVideoBytes + 1}, wantErr: true},
		{name: "eleven megabyte video is fine", file: File{Name: "a.webm", Size: 11 << 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Prepare(tt.file)
			var sizeErr *SizeError
			if tt.wantErr != errors.As(err, &sizeErr) {
				t.Fatalf("Prepare() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPrepareOversizedVideoMessage(t *testing.T) {
	_, err := Prepare(File{Name: "engine.mp4", Size: 60 << 20})
	if err == nil {
		t.Fatalf("expected size error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "too large") || !strings.Contains(msg, "50MB") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestPrepareSniffKeepsContentIntact(t *testing.T) {
	body := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 5000)...)
	p, err := Prepare(File{Name: "photo", Size: int64(len(body)), Content: bytes.NewReader(body)})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if p.Kind != domain.MediaImage {
		t.Fatalf("kind = %q, want image", p.Kind)
	}
	got, err := io.ReadAll(p.Content)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("content changed after sniffing: got %d bytes want %d", len(got), len(body))
	}
}

func TestPrepareEnforcesDeclaredSize(t *testing.T) {
	if _, err := Prepare(File{Name: "engine.mp4", Content: strings.NewReader("x")}); !errors.Is(err, ErrUnknownSize) {
		t.Fatalf("expected ErrUnknownSize, got %v", err)
	}

	body := bytes.Repeat([]byte{9}, 4096)
	p, err := Prepare(File{Name: "engine.mp4", Size: 1024, Content: bytes.NewReader(body)})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	got, err := io.ReadAll(p.Content)
	var sizeErr *SizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("expected SizeError for a body past its declared size, got %v", err)
	}
	if len(got) != 1024 {
		t.Fatalf("read %d bytes before failing, want 1024", len(got))
	}
}
