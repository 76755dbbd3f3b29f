package mediastore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/Abraxas-365/converso/channels"
	"github.com/Abraxas-365/converso/pkg/kernel"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store guarda adjuntos de mensajes en S3. Los proveedores de mensajería
// expiran sus URLs de media a las pocas horas, así que los adjuntos se copian
// a un bucket propio y las conversaciones referencian el key.
type S3Store struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	urlExpiry time.Duration
}

var _ channels.MediaStore = (*S3Store)(nil)

type Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	URLExpiry       time.Duration
}

func NewS3Store(cfg Config) *S3Store {
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = 15 * time.Minute
	}

	client := s3.New(s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	})

	return &S3Store{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		urlExpiry: cfg.URLExpiry,
	}
}

// Upload sube el adjunto bajo un prefijo por tenant y retorna el key final
func (s *S3Store) Upload(ctx context.Context, tenantID kernel.TenantID, key string, contentType string, data []byte) (string, error) {
	objectKey := fmt.Sprintf("media/%s/%s", tenantID.String(), key)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", channels.ErrMediaUploadFailed().
			WithDetail("key", objectKey).
			WithDetail("cause", err.Error())
	}

	return objectKey, nil
}

// PresignedURL genera una URL temporal de lectura para el adjunto
func (s *S3Store) PresignedURL(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign media url: %w", err)
	}
	return req.URL, nil
}

// Delete borra el adjunto
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete media object: %w", err)
	}
	return nil
}
