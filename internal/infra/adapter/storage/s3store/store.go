// Package s3store writes analysis results to Amazon S3 as indented JSON
// documents.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"sentiment-app/internal/domain/entity"
	"sentiment-app/internal/resilience/circuitbreaker"
	"sentiment-app/internal/resilience/retry"
)

// DefaultBucket is the bucket provisioned for analysis results.
const DefaultBucket = "kandidat-48-data"

// PutObjectAPI is the subset of the S3 client the store uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewClient builds an S3 client from the default AWS credential chain.
func NewClient(ctx context.Context, region string) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Store implements repository.ResultStore on an S3 bucket.
type Store struct {
	client PutObjectAPI
	bucket string
	cb     *circuitbreaker.CircuitBreaker
	retry  retry.Config
}

// New creates a Store writing to bucket.
func New(client PutObjectAPI, bucket string) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3 client is nil")
	}
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Store{
		client: client,
		bucket: bucket,
		cb:     circuitbreaker.New(circuitbreaker.ObjectStoreConfig()),
		retry:  retry.ObjectStoreConfig(),
	}, nil
}

// Bucket returns the target bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// Save uploads the analysis as JSON under key and returns s3://bucket/key.
func (s *Store) Save(ctx context.Context, key string, a *entity.Analysis) (string, error) {
	body, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal analysis: %w", err)
	}

	err = retry.WithBackoff(ctx, s.retry, func() error {
		_, err := circuitbreaker.Run(s.cb, func() (*s3.PutObjectOutput, error) {
			return s.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket:      aws.String(s.bucket),
				Key:         aws.String(key),
				Body:        bytes.NewReader(body),
				ContentType: aws.String("application/json"),
			})
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}

	location := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	slog.DebugContext(ctx, "analysis result stored",
		slog.String("location", location),
		slog.Int("bytes", len(body)))
	return location, nil
}

// Breaker exposes the circuit breaker state for health reporting.
func (s *Store) Breaker() *circuitbreaker.CircuitBreaker { return s.cb }
