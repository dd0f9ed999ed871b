package assets

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"sitecms/api/internal/schema"
)

// ObjectConfig configures an S3-compatible bucket.
type ObjectConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	PublicBase string // defaults to /{bucket}
}

// ObjectStorage writes uploads to an S3-compatible bucket.
type ObjectStorage struct {
	client     *minio.Client
	bucket     string
	publicBase string

	bucketMu    sync.Mutex
	bucketReady bool
}

func NewObjectStorage(cfg ObjectConfig) (*ObjectStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	publicBase := strings.TrimRight(cfg.PublicBase, "/")
	if publicBase == "" {
		publicBase = "/" + cfg.Bucket
	}
	return &ObjectStorage{client: client, bucket: cfg.Bucket, publicBase: publicBase}, nil
}

func (s *ObjectStorage) ensureBucket(ctx context.Context) error {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	if s.bucketReady {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	s.bucketReady = true
	return nil
}

func (s *ObjectStorage) Put(ctx context.Context, name string, data []byte) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: http.DetectContentType(data),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", name, err)
	}
	return nil
}

func (s *ObjectStorage) Ref(name string) schema.AssetRef {
	return schema.AssetRef(s.publicBase + "/" + name)
}
