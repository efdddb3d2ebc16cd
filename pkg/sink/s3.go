package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/matzehuels/bpdoc/pkg/document"
)

// S3Config configures an S3 sink.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string // Key prefix, e.g. "docs/"
	UseSSL    bool
}

// S3 writes documents to an S3-compatible bucket.
type S3 struct {
	client *minio.Client
	bucket string
	region string
	prefix string
	ready  setup
}

// NewS3 validates cfg and creates the client. The bucket is created on first
// use if it does not exist.
func NewS3(cfg S3Config) (*S3, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3{
		client: client,
		bucket: bucket,
		region: region,
		prefix: normalizePrefix(cfg.Prefix),
	}, nil
}

// Name returns "s3".
func (s *S3) Name() string { return "s3" }

// Key returns the object key for an artifact path.
func (s *S3) Key(path string) string {
	return s.prefix + document.OutputPath(path)
}

// Write uploads a document.
func (s *S3) Write(ctx context.Context, path string, doc []byte) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is required")
	}
	return s.put(ctx, s.Key(path), doc)
}

// WriteIndex uploads the index.
func (s *S3) WriteIndex(ctx context.Context, doc []byte) error {
	return s.put(ctx, s.prefix+document.IndexFile, doc)
}

// Remove deletes a document object.
func (s *S3) Remove(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, s.Key(path), minio.RemoveObjectOptions{}); err != nil {
		return s3Error(err)
	}
	return nil
}

// ReadIndex downloads the index.
func (s *S3) ReadIndex(ctx context.Context) ([]byte, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.prefix+document.IndexFile, minio.GetObjectOptions{})
	if err != nil {
		return nil, s3Error(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, ErrNoIndex
		}
		return nil, s3Error(err)
	}
	return data, nil
}

func (s *S3) put(ctx context.Context, key string, content []byte) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if content == nil {
		content = []byte{}
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return s3Error(err)
	}
	return nil
}

func (s *S3) ensureBucket(ctx context.Context) error {
	return s.ready.run(func() error {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			return fmt.Errorf("ensure bucket: %w", s3Error(err))
		}
		if exists {
			return nil
		}
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("ensure bucket: %w", s3Error(err))
		}
		return nil
	})
}

// s3Error marks network failures and 5xx responses retryable.
func s3Error(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Retryable(err)
	}
	if resp := minio.ToErrorResponse(err); resp.StatusCode >= 500 {
		return Retryable(err)
	}
	return err
}

func normalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

var (
	_ Sink        = (*S3)(nil)
	_ IndexReader = (*S3)(nil)
)
