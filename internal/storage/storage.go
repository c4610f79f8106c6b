package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"submission-relay/internal/apperr"
	"submission-relay/internal/config"
)

// ArtifactStore uploads raw artifact bytes under a unique name and returns a
// publicly fetchable URL. Any service exposing this contract is
// substitutable.
type ArtifactStore interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// ObjectName derives a collision-resistant upload name from the submitter
// label, the current time and the original filename.
func ObjectName(teamname, filename string, now time.Time) string {
	clean := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				return r
			case r == '.', r == '-', r == '_':
				return r
			default:
				return '_'
			}
		}, s)
	}
	return fmt.Sprintf("%s_%d_%s", clean(teamname), now.UnixMilli(), clean(filename))
}

// S3Store stores artifacts in an S3-compatible bucket.
type S3Store struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	baseURL  string
}

// NewS3Store builds the store from service configuration. A custom endpoint
// switches the client to path-style addressing for S3-compatible services.
func NewS3Store(ctx context.Context, cfg *config.Config) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.S3PublicBaseURL
	if baseURL == "" {
		if cfg.S3Endpoint != "" {
			baseURL = fmt.Sprintf("%s/%s", strings.TrimSuffix(cfg.S3Endpoint, "/"), cfg.S3Bucket)
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
		}
	}

	return &S3Store{
		uploader: manager.NewUploader(client),
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Upload stores the bytes under <prefix>/<name> and returns the public URL.
func (s *S3Store) Upload(ctx context.Context, name string, data []byte) (string, error) {
	key := name
	if s.prefix != "" {
		key = s.prefix + "/" + name
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", apperr.Wrap(apperr.ErrUpstream, err, "artifact upload failed")
	}

	url := s.baseURL + "/" + key
	log.Printf("[STORAGE] Uploaded %s (%d bytes)", key, len(data))
	return url, nil
}
