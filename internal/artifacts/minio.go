package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"captioner/internal/fileutil"
	"captioner/internal/logging"
	"captioner/internal/services"
)

// MinioOptions configures the S3-compatible backend.
type MinioOptions struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PresignTTL time.Duration
	Transport  http.RoundTripper
}

// Minio stores artifacts as objects in a bucket.
type Minio struct {
	client     *minio.Client
	bucket     string
	region     string
	presignTTL time.Duration
	logger     *slog.Logger
}

// NewMinio builds the client. No network calls are made until the first
// operation.
func NewMinio(opts MinioOptions, logger *slog.Logger) (*Minio, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	bucket := strings.TrimSpace(opts.Bucket)
	if endpoint == "" || bucket == "" {
		return nil, services.Wrap(services.ErrConfiguration, "artifacts", "open minio store", "endpoint and bucket are required", nil)
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:    opts.UseSSL,
		Region:    opts.Region,
		Transport: opts.Transport,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "artifacts", "open minio store", "create client", err)
	}
	ttl := opts.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	// Presigned URLs cannot outlive seven days.
	if ttl > 7*24*time.Hour {
		ttl = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Minio{
		client:     client,
		bucket:     bucket,
		region:     opts.Region,
		presignTTL: ttl,
		logger:     logging.NewComponentLogger(logger, "artifacts"),
	}, nil
}

// Bucket returns the configured bucket name.
func (m *Minio) Bucket() string { return m.bucket }

// BucketExists reports whether the bucket is present without creating it.
func (m *Minio) BucketExists(ctx context.Context) (bool, error) {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "artifacts", "bucket exists", m.bucket, err)
	}
	return exists, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *Minio) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return services.Wrap(services.ErrTransient, "artifacts", "ensure bucket", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
		return services.Wrap(services.ErrTransient, "artifacts", "make bucket", m.bucket, err)
	}
	logging.WithContext(ctx, m.logger).Info("bucket created", logging.String("bucket", m.bucket))
	return nil
}

// Publish uploads localPath and removes the local copy once the object is
// stored.
func (m *Minio) Publish(ctx context.Context, localPath, name string) (Artifact, error) {
	if err := checkName(name); err != nil {
		return Artifact{}, services.Wrap(services.ErrValidation, "artifacts", "publish", "", err)
	}
	if err := m.EnsureBucket(ctx); err != nil {
		return Artifact{}, err
	}
	sum, err := fileutil.HashFile(localPath)
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrTransient, "artifacts", "publish", "hash output", err)
	}
	info, err := m.client.FPutObject(ctx, m.bucket, name, localPath, minio.PutObjectOptions{
		ContentType:  contentType(name),
		UserMetadata: map[string]string{"blake3": sum},
	})
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrTransient, "artifacts", "publish", fmt.Sprintf("upload %s", name), err)
	}
	if err := os.Remove(localPath); err != nil {
		logging.WarnWithContext(m.logger, "failed to remove uploaded local file", "artifact_cleanup_failed",
			logging.String("path", localPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the file manually to reclaim space"),
		)
	}
	location := fmt.Sprintf("s3://%s/%s", m.bucket, name)
	logging.WithContext(ctx, m.logger).Info("artifact published",
		logging.String("name", name),
		logging.String("location", location),
		logging.Int64("size_bytes", info.Size),
	)
	return Artifact{Name: name, Location: location, Size: info.Size, Checksum: sum}, nil
}

// Locate returns a presigned GET URL for an existing object.
func (m *Minio) Locate(ctx context.Context, name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", services.Wrap(services.ErrValidation, "artifacts", "locate", "", err)
	}
	if _, err := m.client.StatObject(ctx, m.bucket, name, minio.StatObjectOptions{}); err != nil {
		if isMissing(err) {
			return "", services.Wrap(services.ErrNotFound, "artifacts", "locate", "video not found: "+name, nil)
		}
		return "", services.Wrap(services.ErrTransient, "artifacts", "locate", name, err)
	}
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", name))
	signed, err := m.client.PresignedGetObject(ctx, m.bucket, name, m.presignTTL, params)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "artifacts", "locate", "presign", err)
	}
	return signed.String(), nil
}

func (m *Minio) Remove(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return services.Wrap(services.ErrValidation, "artifacts", "remove", "", err)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, name, minio.RemoveObjectOptions{}); err != nil && !isMissing(err) {
		return services.Wrap(services.ErrTransient, "artifacts", "remove", name, err)
	}
	return nil
}

func isMissing(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(name), ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(strings.ToLower(name), ".srt"):
		return "application/x-subrip"
	default:
		return "application/octet-stream"
	}
}
