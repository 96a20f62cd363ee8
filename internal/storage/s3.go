package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3KeyPrefix is the folder every uploaded image lives under
const S3KeyPrefix = "images/"

// objectAPI is the subset of *s3.Client used here
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string // S3-compatible services such as MinIO or DigitalOcean Spaces
	AccessKeyID     string
	SecretAccessKey string
}

// S3Blob stores blobs in an S3 bucket
type S3Blob struct {
	client   objectAPI
	bucket   string
	region   string
	endpoint string
}

// NewS3Blob creates an S3 client from static credentials.
func NewS3Blob(ctx context.Context, opts S3Options) (*S3Blob, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID, opts.SecretAccessKey, "",
		)),
		config.WithRegion(opts.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Blob(client, opts), nil
}

func newS3Blob(client objectAPI, opts S3Options) *S3Blob {
	return &S3Blob{
		client:   client,
		bucket:   opts.Bucket,
		region:   opts.Region,
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
	}
}

func (b *S3Blob) Backend() Backend {
	return BackendS3
}

// Put uploads data under images/<name>
func (b *S3Blob) Put(ctx context.Context, name string, data []byte, contentType string) (Ref, error) {
	key := S3KeyPrefix + name

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return Ref{}, fmt.Errorf("failed to upload file: %w", err)
	}

	return Ref{Backend: BackendS3, Key: key, Location: b.URL(key)}, nil
}

// Delete removes key after confirming it exists. A missing object reports
// false without error.
func (b *S3Blob) Delete(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get object info: %w", err)
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete object: %w", err)
	}
	return true, nil
}

// URL is the public address of key
func (b *S3Blob) URL(key string) string {
	if b.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", b.endpoint, b.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.region, key)
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}
