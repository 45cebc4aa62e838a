package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures S3Mirror.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Prefix    string

	// VirtualHosted switches from path-style to virtual-hosted addressing.
	VirtualHosted bool
}

// S3Mirror copies artifacts to an S3-compatible bucket.
type S3Mirror struct {
	api    *s3.Client
	bucket string
	prefix string
}

// NewS3Mirror builds a mirror from static credentials.
func NewS3Mirror(ctx context.Context, cfg S3Config) (*S3Mirror, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("artifact: S3 endpoint and bucket are required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("artifact: S3 access key and secret key are required")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("artifact: aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = !cfg.VirtualHosted
		o.BaseEndpoint = aws.String(endpoint)
	})
	return &S3Mirror{api: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (m *S3Mirror) key(name string) string {
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

// Put uploads r under the configured prefix.
func (m *S3Mirror) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	_, err := m.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(m.key(name)),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType(name)),
	})
	return err
}

// Delete removes the object for name.
func (m *S3Mirror) Delete(ctx context.Context, name string) error {
	_, err := m.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(name)),
	})
	return err
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}
