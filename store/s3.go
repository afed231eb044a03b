package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds configuration for mirroring a run directory to S3.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string `yaml:"bucket"`
	// Prefix is the key prefix within the bucket (optional).
	Prefix string `yaml:"prefix"`
	// Region is the AWS region (optional, uses default chain if empty).
	Region string `yaml:"region"`
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string `yaml:"endpoint"`
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool `yaml:"use_path_style"`
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a destination in format "bucket/prefix" or "bucket".
func ParseS3Path(p string) (bucket, prefix string) {
	parts := strings.SplitN(p, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// objectPutter is the slice of the S3 client the mirror needs.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Mirror uploads completed run artifacts to an S3-compatible object store.
// It is a post-run step: the local run directory remains the source of truth.
type Mirror struct {
	client objectPutter
	bucket string
	prefix string
}

// NewMirror creates a Mirror using the AWS SDK default credential chain
// (env vars, shared config, IAM role).
func NewMirror(ctx context.Context, cfg S3Config) (*Mirror, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Mirror{
		client: s3.NewFromConfig(awsConfig, s3Opts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// MirrorDir uploads every regular file under dir, keyed by its path relative
// to dir under the configured prefix. Returns the number of objects uploaded.
func (m *Mirror) MirrorDir(ctx context.Context, dir string) (int, error) {
	uploaded := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		if err := m.put(ctx, filepath.ToSlash(rel), data); err != nil {
			return err
		}
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, fmt.Errorf("mirror %s: %w", dir, err)
	}
	return uploaded, nil
}

func (m *Mirror) put(ctx context.Context, key string, data []byte) error {
	full := key
	if m.prefix != "" {
		full = path.Join(m.prefix, key)
	}
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &m.bucket,
		Key:    &full,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", m.bucket, full, err)
	}
	return nil
}

// StubPutter records PutObject calls for testing.
type StubPutter struct {
	mu      sync.Mutex
	Objects map[string][]byte
	// Err, when set, fails every call.
	Err error
}

// NewStubPutter creates an empty stub.
func NewStubPutter() *StubPutter {
	return &StubPutter{Objects: make(map[string][]byte)}
}

// PutObject implements objectPutter by recording the object body.
func (s *StubPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(in.Body); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.Objects[*in.Key] = buf.Bytes()
	s.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

// Verify StubPutter implements objectPutter.
var _ objectPutter = (*StubPutter)(nil)

// NewMirrorWithClient wires an explicit client, used by tests.
func NewMirrorWithClient(client objectPutter, bucket, prefix string) *Mirror {
	return &Mirror{client: client, bucket: bucket, prefix: prefix}
}
