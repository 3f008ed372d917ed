// Package store reads and writes objects in an S3-compatible bucket.
package store

import (
	"context"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
)

const (
	// Get reports NoSuchKey, Head reports NotFound.
	noSuchKeyErr = "NoSuchKey"
	notFoundErr  = "NotFound"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("object not found")

// S3API is the subset of the S3 client a Bucket uses.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

type Options struct {
	Bucket string
	Region string
	// Endpoint overrides the service endpoint, for MinIO and friends.
	// Setting it switches to path-style addressing.
	Endpoint string

	// AccessKeyID and SecretKey override every other credential source.
	AccessKeyID string
	SecretKey   string
}

// Bucket is a single S3 bucket.
type Bucket struct {
	api  S3API
	name string
}

// New builds a Bucket from the default AWS configuration chain
// (environment, shared config, instance role) plus opts.
func New(ctx context.Context, opts Options) (*Bucket, error) {
	if opts.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewBucket(client, opts.Bucket), nil
}

func NewBucket(api S3API, name string) *Bucket {
	return &Bucket{api: api, name: name}
}

func (b *Bucket) Name() string {
	return b.name
}

// Get opens the object at key. The caller closes the body.
func (b *Bucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "s3://%s/%s", b.name, key)
		}
		return nil, errors.Wrapf(err, "get s3://%s/%s", b.name, key)
	}
	return out.Body, nil
}

// Put uploads size bytes from body to key.
func (b *Bucket) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.name),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return errors.Wrapf(err, "put s3://%s/%s", b.name, key)
	}
	return nil
}

// Copy does a server-side copy of src to dst within the bucket.
func (b *Bucket) Copy(ctx context.Context, src, dst string) error {
	source := (&url.URL{Path: b.name + "/" + src}).EscapedPath()
	_, err := b.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.name),
		CopySource: aws.String(source),
		Key:        aws.String(dst),
	})
	if err != nil {
		return errors.Wrapf(err, "copy s3://%s/%s to %s", b.name, src, dst)
	}
	return nil
}

// IsNotFound reports whether err is an S3 missing-key error.
func IsNotFound(err error) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	code := ae.ErrorCode()
	return code == noSuchKeyErr || code == notFoundErr
}
