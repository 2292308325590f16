// Package objectstore hands out presigned S3 URLs for installation photos.
// Devices upload straight to the bucket; the API never proxies image bytes.
package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"printer-fieldops/internal/config"
	"printer-fieldops/internal/model"
)

const defaultPresignTTL = 15 * time.Minute

type Presigner struct {
	client *s3.PresignClient
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

func NewPresigner(ctx context.Context, cfg config.ObjectStorage) (*Presigner, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object storage bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}

	return &Presigner{
		client: s3.NewPresignClient(client),
		bucket: cfg.Bucket,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// PresignUpload signs a PUT for key; the uploader must send the same Content-Type.
func (p *Presigner) PresignUpload(ctx context.Context, key string, contentType string) (model.PhotoUploadURL, error) {
	issuedAt := p.now().UTC()
	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return model.PhotoUploadURL{}, fmt.Errorf("presign put %s: %w", key, err)
	}

	return model.PhotoUploadURL{
		Key:       key,
		URL:       req.URL,
		Method:    req.Method,
		ExpiresAt: issuedAt.Add(p.ttl),
	}, nil
}
