package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const objectStoreSlotPrefix = "slots"

// ObjectStoreConfig captures configuration for the object storage-backed slot store.
type ObjectStoreConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Prefix    string
	UseSSL    bool
	PathStyle bool
}

// ObjectSlotStore persists each slot as one object under slots/ in an S3-compatible bucket.
type ObjectSlotStore struct {
	client *minio.Client
	cfg    ObjectStoreConfig

	bucketOnce sync.Once
	bucketErr  error
}

// NewObjectSlotStore initializes an object storage backed slot store.
func NewObjectSlotStore(cfg ObjectStoreConfig) (*ObjectSlotStore, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.AccessKey = strings.TrimSpace(cfg.AccessKey)
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")

	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object store: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store: bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("object store: access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("object store: secret key is required")
	}

	options := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		options.BucketLookup = minio.BucketLookupPath
	}

	client, err := minio.New(cfg.Endpoint, options)
	if err != nil {
		return nil, fmt.Errorf("object store: create client: %w", err)
	}
	return &ObjectSlotStore{client: client, cfg: cfg}, nil
}

// Get implements SlotStore.
func (s *ObjectSlotStore) Get(ctx context.Context, key string) (string, error) {
	fullKey := s.slotKey(key)
	object, err := s.client.GetObject(ctx, s.cfg.Bucket, fullKey, minio.GetObjectOptions{})
	if err != nil {
		if isObjectNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("object store: get object %s: %w", fullKey, err)
	}
	defer func() {
		_ = object.Close()
	}()
	data, err := io.ReadAll(object)
	if err != nil {
		if isObjectNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("object store: read object %s: %w", fullKey, err)
	}
	return string(data), nil
}

// Set implements SlotStore. An empty value removes the object.
func (s *ObjectSlotStore) Set(ctx context.Context, key, value string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	fullKey := s.slotKey(key)
	if value == "" {
		err := s.client.RemoveObject(ctx, s.cfg.Bucket, fullKey, minio.RemoveObjectOptions{})
		if err != nil && !isObjectNotFound(err) {
			return fmt.Errorf("object store: delete object %s: %w", fullKey, err)
		}
		return nil
	}
	data := []byte(value)
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, fullKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/plain",
	})
	if err != nil {
		return fmt.Errorf("object store: put object %s: %w", fullKey, err)
	}
	return nil
}

func (s *ObjectSlotStore) ensureBucket(ctx context.Context) error {
	s.bucketOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
		if err != nil {
			s.bucketErr = fmt.Errorf("object store: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err = s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			s.bucketErr = fmt.Errorf("object store: create bucket: %w", err)
		}
	})
	return s.bucketErr
}

func (s *ObjectSlotStore) slotKey(key string) string {
	return prefixedKey(s.cfg.Prefix, objectStoreSlotPrefix+"/"+strings.TrimLeft(key, "/"))
}

func prefixedKey(prefix, key string) string {
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}
	return strings.TrimLeft(prefix+"/"+key, "/")
}

func isObjectNotFound(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound {
		return true
	}
	switch resp.Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	return false
}

// ParseObjectEndpoint accepts either host[:port][/path] or an http(s) URL and
// returns the minio endpoint plus whether TLS should be used.
func ParseObjectEndpoint(raw string) (string, bool, error) {
	resolved := strings.TrimSpace(raw)
	useSSL := true
	if strings.Contains(resolved, "://") {
		parsed, err := url.Parse(resolved)
		if err != nil {
			return "", false, fmt.Errorf("object store: parse endpoint %q: %w", raw, err)
		}
		switch strings.ToLower(parsed.Scheme) {
		case "http":
			useSSL = false
		case "https":
			useSSL = true
		default:
			return "", false, fmt.Errorf("object store: unsupported scheme %q (only http and https are allowed)", parsed.Scheme)
		}
		if parsed.Host == "" {
			return "", false, fmt.Errorf("object store: endpoint %q is missing host information", raw)
		}
		resolved = parsed.Host
		if parsed.Path != "" && parsed.Path != "/" {
			resolved = strings.TrimSuffix(parsed.Host+parsed.Path, "/")
		}
	}
	return strings.TrimRight(resolved, "/"), useSSL, nil
}
