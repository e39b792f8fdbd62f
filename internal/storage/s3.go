package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// putObjectAPI is the part of the S3 client S3 uses; tests swap in a fake.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores objects in a bucket. PublicURL, when set, is the prefix objects
// are served from (a CDN or a MinIO endpoint); otherwise the virtual-hosted
// AWS URL is used.
type S3 struct {
	client    putObjectAPI
	bucket    string
	region    string
	publicURL string
}

// NewS3 builds a client from the default AWS credential chain.
func NewS3(ctx context.Context, bucket, region, publicURL string) (*S3, error) {
	if bucket == "" {
		return nil, errors.New("storage: S3 bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "load AWS config")
	}
	return newS3(s3.NewFromConfig(cfg), bucket, region, publicURL), nil
}

func newS3(client putObjectAPI, bucket, region, publicURL string) *S3 {
	return &S3{
		client:    client,
		bucket:    bucket,
		region:    region,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (s *S3) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", errors.Wrapf(err, "put s3://%s/%s", s.bucket, key)
	}
	return s.url(key), nil
}

func (s *S3) url(key string) string {
	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s", s.publicURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
