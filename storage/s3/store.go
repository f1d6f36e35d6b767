package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"storecanvas/core"
)

// API is the subset of the S3 client used by the store.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Store struct {
	client  API
	bucket  string
	baseURL string
}

// Options configures the S3 object store.
type Options struct {
	Bucket string
	// Endpoint targets an S3-compatible service with path-style addressing.
	Endpoint string
	// PublicBaseURL prefixes object URLs. Defaults to the bucket address.
	PublicBaseURL string
	Region        string
	// AccessKeyID and SecretAccessKey replace the default credential chain when both are set.
	AccessKeyID     string
	SecretAccessKey string
}

// NewStore creates an S3 object store.
func NewStore(ctx context.Context, opts Options) (*s3Store, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newStore(client, opts.Bucket, publicBaseURL(opts, cfg.Region)), nil
}

func publicBaseURL(opts Options, region string) string {
	switch {
	case opts.PublicBaseURL != "":
		return opts.PublicBaseURL
	case opts.Endpoint != "":
		return strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
	case region != "":
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, region)
	default:
		return fmt.Sprintf("https://%s.s3.amazonaws.com", opts.Bucket)
	}
}

func newStore(client API, bucket, baseURL string) *s3Store {
	return &s3Store{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *s3Store) Put(ctx context.Context, data []byte, contentType string) (*core.StoredObject, error) {
	key := ulid.Make().String() + core.ExtensionFor(contentType)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{"bucket": s.bucket, "key": key}).WithError(err).Error("Failed to upload object")
		return nil, fmt.Errorf("%w: failed to upload object %s: %w", core.ErrStorage, key, err)
	}
	return &core.StoredObject{Key: key, URL: s.baseURL + "/" + key}, nil
}

func (s *s3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%w: failed to delete object %s: %w", core.ErrStorage, key, err)
	}
	return nil
}
