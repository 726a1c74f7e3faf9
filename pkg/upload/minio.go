package upload

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"marinehub/internal/util"
	"marinehub/pkg/domain"
)

// MinioConfig configures the S3-compatible backend.
type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PresignExpiry time.Duration
}

// MinioBackend stores uploads in a MinIO/S3 bucket and hands out presigned
// GET URLs as the file URL.
type MinioBackend struct {
	client        *minio.Client
	bucket        string
	presignExpiry time.Duration
}

// NewMinioBackend connects to MinIO and ensures the bucket exists.
func NewMinioBackend(cfg MinioConfig) (*MinioBackend, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("minio: bucket required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 7 * 24 * time.Hour
	}
	return &MinioBackend{client: client, bucket: cfg.Bucket, presignExpiry: expiry}, nil
}

func (m *MinioBackend) Upload(ctx context.Context, f Prepared, opts Options) (domain.UploadedFile, error) {
	key := objectKey(opts.Folder, f.Name)
	contentType := f.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name)))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	putOpts := minio.PutObjectOptions{ContentType: contentType}
	if len(opts.Tags) > 0 {
		putOpts.UserMetadata = map[string]string{"tags": strings.Join(opts.Tags, ",")}
	}
	info, err := m.client.PutObject(ctx, m.bucket, key, f.Content, f.Size, putOpts)
	if err != nil {
		return domain.UploadedFile{}, &RequestError{Filename: f.Name, Message: "put object", Err: err}
	}
	signed, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.presignExpiry, nil)
	if err != nil {
		return domain.UploadedFile{}, &RequestError{Filename: f.Name, Message: "presign get", Err: err}
	}
	return domain.UploadedFile{
		StorageID:        key,
		OriginalFilename: f.Name,
		URL:              signed.String(),
		SizeBytes:        info.Size,
		Format:           strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), "."),
		Kind:             f.Kind,
		UploadedAt:       time.Now().UTC(),
	}, nil
}

// Remove deletes the stored object.
func (m *MinioBackend) Remove(ctx context.Context, file domain.UploadedFile) error {
	if err := m.client.RemoveObject(ctx, m.bucket, file.StorageID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func objectKey(folder, filename string) string {
	name := sanitizeFilename(filepath.Base(filename))
	if name == "" {
		name = "file"
	}
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		folder = "uploads"
	}
	return path.Join(folder, util.NewID(), name)
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
