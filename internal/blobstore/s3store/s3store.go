// Package s3store implements ports.BlobStore over an S3-compatible object
// store, adapted from the teacher's internal/s3/client.go: the same
// PutObject/GetObject/HeadObject shape, generalized from "S3 object body"
// to "blob path bytes" keyed by the path the container's blob header
// carries.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/kenneth/rbuvault/internal/config"
)

// Store is a ports.BlobStore backed by AWS SDK v2's S3 client, addressing
// every blob under a single bucket with the blob header's path as the
// object key.
type Store struct {
	client *s3.Client
	bucket string
}

// New constructs a Store from a BackendConfig (Type must be "s3"),
// resolving the endpoint and path-style addressing for the configured
// provider via ResolveProvider.
func New(ctx context.Context, cfg config.BackendConfig) (*Store, error) {
	resolved, err := ResolveProvider(cfg)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(resolved.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("s3store: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if resolved.Endpoint != "" {
			o.BaseEndpoint = aws.String(resolved.Endpoint)
		}
		o.UsePathStyle = resolved.PathStyle
	})

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Exists reports whether an object is present at path via HeadObject.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err == nil {
		return true, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
		return false, nil
	}
	return false, fmt.Errorf("s3store: head %q: %w", path, err)
}

// Retrieve reads the full object body at path.
func (s *Store) Retrieve(ctx context.Context, path string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, fmt.Errorf("s3store: get %q: %w", path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3store: reading body of %q: %w", path, err)
	}
	return data, nil
}

// Store uploads data as the object body at path.
func (s *Store) Store(ctx context.Context, path string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3store: put %q: %w", path, err)
	}
	return nil
}
