package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures an S3-compatible archive.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Archive stores one JSON object per entry under
// <path>/<valid_from>_<valid_until>/<id>.json.
type S3Archive struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

// s3Object is the stored body: the entry with its payload inlined.
type s3Object struct {
	Entry
	Payload []byte `json:"payload"`
}

// NewS3Archive validates cfg and builds a client. The bucket is created
// lazily on first use.
func NewS3Archive(cfg S3Config) (*S3Archive, error) {
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

	return &S3Archive{
		client:     client,
		bucketName: bucket,
		region:     region,
	}, nil
}

func (s *S3Archive) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Put uploads the entry.
func (s *S3Archive) Put(ctx context.Context, e Entry) (string, error) {
	if err := prepare(&e); err != nil {
		return "", fmt.Errorf("put: %w", err)
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	body, err := json.Marshal(s3Object{Entry: e, Payload: e.Payload})
	if err != nil {
		return "", fmt.Errorf("put: %w", err)
	}

	key := objectKey(e)
	_, err = s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			MetaRunNumber: e.Metadata[MetaRunNumber],
		},
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	slog.Debug("archive entry uploaded", "bucket", s.bucketName, "key", key, "run", e.RunNumber())
	return e.ID, nil
}

// Latest returns the newest entry under path valid at at.
func (s *S3Archive) Latest(ctx context.Context, path string, at int64) (*Entry, error) {
	keys, err := s.keys(ctx, path)
	if err != nil {
		return nil, err
	}

	var best *objectRef
	for i := range keys {
		ref := keys[i]
		if ref.validFrom > at || ref.validUntil < at {
			continue
		}
		if best == nil || ref.id > best.id {
			best = &ref
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}

	obj, err := s.get(ctx, best.key)
	if err != nil {
		return nil, err
	}
	e := obj.Entry
	e.Payload = obj.Payload
	return &e, nil
}

// List returns every entry under path ordered by validity start, then id.
// Each object is fetched to recover its metadata; payloads are dropped.
func (s *S3Archive) List(ctx context.Context, path string) ([]Entry, error) {
	keys, err := s.keys(ctx, path)
	if err != nil {
		return nil, err
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].validFrom != keys[j].validFrom {
			return keys[i].validFrom < keys[j].validFrom
		}
		return keys[i].id < keys[j].id
	})

	entries := make([]Entry, 0, len(keys))
	for _, ref := range keys {
		obj, err := s.get(ctx, ref.key)
		if err != nil {
			return nil, err
		}
		entries = append(entries, obj.Entry)
	}
	return entries, nil
}

// Close is a no-op; the MinIO client holds no resources that need release.
func (s *S3Archive) Close() error { return nil }

func (s *S3Archive) keys(ctx context.Context, path string) ([]objectRef, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	prefix := strings.Trim(strings.TrimSpace(path), "/") + "/"
	refs := make([]objectRef, 0, 32)
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		ref, ok := parseObjectKey(prefix, obj.Key)
		if !ok {
			slog.Warn("skipping foreign object", "bucket", s.bucketName, "key", obj.Key)
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *S3Archive) get(ctx context.Context, key string) (*s3Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var out s3Object
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &out, nil
}

type objectRef struct {
	key        string
	id         string
	validFrom  int64
	validUntil int64
}

func objectKey(e Entry) string {
	return fmt.Sprintf("%s/%d_%d/%s.json", e.Path, e.ValidFrom, e.ValidUntil, e.ID)
}

// parseObjectKey is the inverse of objectKey for keys under prefix.
func parseObjectKey(prefix, key string) (objectRef, bool) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return objectRef{}, false
	}
	validity, file, ok := strings.Cut(rest, "/")
	if !ok || strings.Contains(file, "/") {
		return objectRef{}, false
	}
	id, ok := strings.CutSuffix(file, ".json")
	if !ok || id == "" {
		return objectRef{}, false
	}
	fromStr, untilStr, ok := strings.Cut(validity, "_")
	if !ok {
		return objectRef{}, false
	}
	from, err := strconv.ParseInt(fromStr, 10, 64)
	if err != nil {
		return objectRef{}, false
	}
	until, err := strconv.ParseInt(untilStr, 10, 64)
	if err != nil {
		return objectRef{}, false
	}
	return objectRef{key: key, id: id, validFrom: from, validUntil: until}, true
}
