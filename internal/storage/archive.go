package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/opspilot/opspilot/internal/errors"
)

const (
	backendArchive = "archive"

	// SnapshotObject and ReportObject name the objects written per run.
	SnapshotObject = "snapshot.json"
	ReportObject   = "report.md"

	defaultArchiveRegion = "us-east-1"
)

// ArchiveConfig configures the object storage archive.
type ArchiveConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type archiveObject struct {
	name        string
	content     []byte
	contentType string
}

// Archive mirrors runs to an S3-compatible bucket under <run-id>/.
type Archive struct {
	client *minio.Client
	bucket string
	region string

	mu    sync.Mutex
	ready bool
}

// NewArchive validates cfg and creates a client. No request is made until
// the first upload.
func NewArchive(cfg ArchiveConfig) (*Archive, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.NewValidationError("archive endpoint is required").WithField("archive.endpoint")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, errors.NewValidationError("archive access key and secret key are required").WithField("archive.access_key")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.NewValidationError("archive bucket is required").WithField("archive.bucket")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultArchiveRegion
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, errors.NewStorageError("init archive client", err).WithBackend(backendArchive)
	}
	return &Archive{client: client, bucket: bucket, region: region}, nil
}

// Bucket returns the target bucket name.
func (a *Archive) Bucket() string {
	return a.bucket
}

// ensureBucket creates the bucket on first use. A failed attempt is not
// cached, so a later call tries again.
func (a *Archive) ensureBucket(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ready {
		return nil
	}

	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
			return err
		}
	}
	a.ready = true
	return nil
}

// s3Error wraps a client error, marking network failures, throttling and
// server-side errors as retryable.
func s3Error(msg, id string, err error) *errors.StorageError {
	return errors.NewStorageError(msg, err).
		WithBackend(backendArchive).
		WithRunID(id).
		WithRetryable(transientS3(err))
}

func transientS3(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	status := minio.ToErrorResponse(err).StatusCode
	return status == 0 || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// Upload writes the snapshot JSON and, when non-empty, the markdown report.
// Transient failures are retried. It returns the object keys written.
func (a *Archive) Upload(ctx context.Context, snap *Snapshot, report []byte) ([]string, error) {
	if err := ValidateRunID(snap.RunID); err != nil {
		return nil, err
	}
	err := retry(ctx, retryAttempts, retryBaseDelay, func() error {
		if err := a.ensureBucket(ctx); err != nil {
			return s3Error("ensure bucket", snap.RunID, errors.Join(errors.ErrStorageUnavailable, err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, errors.NewStorageError("marshal run", err).WithBackend(backendArchive).WithRunID(snap.RunID)
	}

	objects := []archiveObject{{SnapshotObject, data, "application/json"}}
	if len(report) > 0 {
		objects = append(objects, archiveObject{ReportObject, report, "text/markdown"})
	}

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		key := objectKey(snap.RunID, obj.name)
		err := retry(ctx, retryAttempts, retryBaseDelay, func() error {
			_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(obj.content), int64(len(obj.content)),
				minio.PutObjectOptions{ContentType: obj.contentType})
			if err != nil {
				return s3Error("upload "+obj.name, snap.RunID, err)
			}
			return nil
		})
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Fetch downloads an archived snapshot. Transient failures are retried.
func (a *Archive) Fetch(ctx context.Context, id string) (*Snapshot, error) {
	if err := ValidateRunID(id); err != nil {
		return nil, errors.NewNotFoundError("run", id).WithCause(err)
	}
	var data []byte
	err := retry(ctx, retryAttempts, retryBaseDelay, func() error {
		if err := a.ensureBucket(ctx); err != nil {
			return s3Error("ensure bucket", id, err)
		}
		obj, err := a.client.GetObject(ctx, a.bucket, objectKey(id, SnapshotObject), minio.GetObjectOptions{})
		if err != nil {
			return s3Error("fetch run", id, err)
		}
		defer func() { _ = obj.Close() }()

		data, err = io.ReadAll(obj)
		if err != nil {
			code := minio.ToErrorResponse(err).Code
			if code == "NoSuchKey" || code == "NoSuchBucket" {
				return errors.NewNotFoundError("run", id)
			}
			return s3Error("read run", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.NewStorageError("decode run", err).WithBackend(backendArchive).WithRunID(id)
	}
	return &snap, nil
}

func objectKey(runID, name string) string {
	return strings.TrimSpace(runID) + "/" + strings.TrimLeft(strings.TrimSpace(name), "/")
}
