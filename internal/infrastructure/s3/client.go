package s3infra

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-pregnancy-family/internal/config"
	"github.com/go-pregnancy-family/internal/infrastructure/awsconf"
)

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store uploads objects to one bucket and builds their public URLs.
type Store struct {
	client  putter
	bucket  string
	baseURL string
}

// NewClient creates an S3 client. A configured endpoint (LocalStack) switches
// to path-style addressing.
func NewClient(cfg *config.Config) *s3.Client {
	awsCfg, err := awsconf.Load(context.Background(), cfg, cfg.AWSRegion)
	if err != nil {
		panic("failed to load AWS config for S3: " + err.Error())
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = awsconf.Endpoint(cfg)
		o.UsePathStyle = o.BaseEndpoint != nil
	})
}

// NewStore creates a Store for bucket. Object URLs are virtual-hosted style unless
// cfg.AWSEndpointURL is set, in which case they are path style under that endpoint.
func NewStore(client *s3.Client, cfg *config.Config) *Store {
	return newStore(client, cfg.AvatarBucket, cfg.AWSRegion, cfg.AWSEndpointURL)
}

func newStore(client putter, bucket, region, endpoint string) *Store {
	base := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	if endpoint != "" {
		base = endpoint + "/" + bucket
	}
	return &Store{client: client, bucket: bucket, baseURL: base}
}

// Upload streams an object to S3 under key and returns its URL.
func (s *Store) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return s.baseURL + "/" + key, nil
}
