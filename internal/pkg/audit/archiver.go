// Package audit keeps a raw copy of inbound provider webhooks in object
// storage. Archiving is best effort and never blocks reconciliation.
package audit

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

// Archiver stores a raw webhook body.
type Archiver interface {
	Archive(ctx context.Context, provider, id string, body []byte) error
}

// NopArchiver discards everything.
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, string, string, []byte) error { return nil }

// putObjectAPI is the part of *s3.Client the archiver needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes webhook bodies to an S3 compatible bucket.
type S3Archiver struct {
	client putObjectAPI
	config *Config
	now    func() time.Time
}

// NewS3Archiver creates an archiver for cfg. The bucket is not checked here.
func NewS3Archiver(ctx context.Context, cfg *Config) (*S3Archiver, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})
	return newS3Archiver(client, cfg), nil
}

func newS3Archiver(client putObjectAPI, cfg *Config) *S3Archiver {
	return &S3Archiver{client: client, config: cfg, now: time.Now}
}

func (a *S3Archiver) Archive(ctx context.Context, provider, id string, body []byte) error {
	key := a.config.ObjectKey(provider, id, a.now())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.config.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata: map[string]string{
			"provider":      provider,
			"upload-source": "storefox-webhook",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to archive webhook to s3://%s/%s: %w", a.config.BucketName, key, err)
	}
	return nil
}

// NewFromEnv returns an S3Archiver when the archive is enabled and fully
// configured, otherwise a NopArchiver.
func NewFromEnv(ctx context.Context) Archiver {
	cfg, err := LoadConfig()
	if err != nil {
		log.Warnf("[Audit] Webhook archive disabled: %v", err)
		return NopArchiver{}
	}
	if !cfg.Enabled {
		return NopArchiver{}
	}
	archiver, err := NewS3Archiver(ctx, cfg)
	if err != nil {
		log.Errorf("[Audit] Failed to initialize S3 archiver: %v", err)
		return NopArchiver{}
	}
	log.Infof("[Audit] Archiving webhooks to bucket %s", cfg.BucketName)
	return archiver
}
