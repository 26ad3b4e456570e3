// Package s3 stores uploaded schedule workbooks in an S3 bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
	"github.com/kirillkom/tariff-engine/internal/infrastructure/resilience"
)

const workbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// API is the subset of the S3 client the storage uses.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Options struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	Executor     *resilience.Executor
}

type Storage struct {
	client   API
	bucket   string
	prefix   string
	executor *resilience.Executor
}

// New loads the default AWS credential chain. Endpoint points the client
// at an S3-compatible server such as MinIO.
func New(ctx context.Context, opts Options) (*Storage, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	slog.Info("s3_storage_initialized", "bucket", opts.Bucket, "prefix", opts.Prefix, "region", region)
	return NewWithClient(client, opts), nil
}

func NewWithClient(client API, opts Options) *Storage {
	return &Storage{
		client:   client,
		bucket:   opts.Bucket,
		prefix:   strings.TrimSuffix(opts.Prefix, "/"),
		executor: opts.Executor,
	}
}

// Save buffers the body so retries can replay it.
func (s *Storage) Save(ctx context.Context, key string, data io.Reader) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	objectKey := s.objectKey(key)
	err = s.run(ctx, "s3.put_object", func(callCtx context.Context) error {
		_, err := s.client.PutObject(callCtx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(objectKey),
			Body:        bytes.NewReader(body),
			ContentType: aws.String(workbookContentType),
		})
		return err
	})
	if err != nil {
		return resilience.MarkTemporary("s3 put object", fmt.Errorf("s3 put %s/%s: %w", s.bucket, objectKey, err), classifyS3Error)
	}
	return nil
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey := s.objectKey(key)
	out, err := resilience.Call(ctx, s.executor, "s3.get_object", func(callCtx context.Context) (*s3.GetObjectOutput, error) {
		return s.client.GetObject(callCtx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectKey),
		})
	}, classifyS3Error)
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, domain.WrapError(domain.ErrInvalidInput, "s3 get object", fmt.Errorf("missing object %s", objectKey))
		}
		return nil, resilience.MarkTemporary("s3 get object", fmt.Errorf("s3 get %s/%s: %w", s.bucket, objectKey, err), classifyS3Error)
	}
	return out.Body, nil
}

func (s *Storage) objectKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *Storage) run(ctx context.Context, op string, fn func(context.Context) error) error {
	if s.executor == nil {
		return fn(ctx)
	}
	return s.executor.Execute(ctx, op, fn, classifyS3Error)
}

func classifyS3Error(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if resilience.IsContextDone(err) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var netErr net.Error
	if resilience.IsCircuitOpen(err) || errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
