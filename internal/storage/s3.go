package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tbourn/go-vehicle-assistant/internal/config"
	"github.com/tbourn/go-vehicle-assistant/internal/domain"
)

// S3API is the subset of *s3.Client used here.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3ImageStore writes images to a bucket and keeps only the key in the row.
type S3ImageStore struct {
	Client S3API
	Bucket string
	Prefix string
}

// LoadAWS loads the AWS configuration, using a custom endpoint (LocalStack,
// MinIO) if AWS_ENDPOINT_URL is set.
func LoadAWS(ctx context.Context, region string) (aws.Config, string, error) {
	endpoint := os.Getenv("AWS_ENDPOINT_URL")
	cfg, err := awsCfg.LoadDefaultConfig(ctx, awsCfg.WithRegion(region))
	return cfg, endpoint, err
}

// NewS3ImageStore builds a store from the storage configuration.
func NewS3ImageStore(ctx context.Context, c config.StorageConfig) (*S3ImageStore, error) {
	cfg, endpoint, err := LoadAWS(ctx, c.S3Region)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3ImageStore{Client: client, Bucket: c.S3Bucket, Prefix: c.S3Prefix}, nil
}

// Key returns the object key of an invoice image.
func (s *S3ImageStore) Key(invoiceID string) string {
	return path.Join(s.Prefix, invoiceID+".jpg")
}

func (s *S3ImageStore) Put(ctx context.Context, inv *domain.Invoice, img []byte, mime string) error {
	if inv.ID == "" {
		return errors.New("storage: invoice id required before upload")
	}
	key := s.Key(inv.ID)
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(img),
		ContentType: aws.String(mime),
		Metadata:    map[string]string{"vehicle_id": inv.VehicleID, "invoice_id": inv.ID},
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	inv.ImageKey, inv.ImageMIME, inv.ImageData = key, mime, nil
	return nil
}

func (s *S3ImageStore) Get(ctx context.Context, inv *domain.Invoice) ([]byte, string, error) {
	if inv.ImageKey == "" {
		if len(inv.ImageData) > 0 {
			// rows written before the store was switched to S3
			return inv.ImageData, inv.ImageMIME, nil
		}
		return nil, "", ErrNoImage
	}
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(inv.ImageKey),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, "", ErrNoImage
		}
		return nil, "", fmt.Errorf("get %s: %w", inv.ImageKey, err)
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", err
	}
	mime := inv.ImageMIME
	if mime == "" {
		mime = aws.ToString(out.ContentType)
	}
	return b, mime, nil
}

func (s *S3ImageStore) Delete(ctx context.Context, inv *domain.Invoice) error {
	if inv.ImageKey == "" {
		return nil
	}
	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(inv.ImageKey),
	})
	return err
}

// New selects the image store named by the configuration.
func New(ctx context.Context, c config.StorageConfig) (ImageStore, error) {
	if c.ImageStore == "s3" {
		return NewS3ImageStore(ctx, c)
	}
	return DBImageStore{}, nil
}
