// Package media stores uploaded item images in S3.
package media

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrDisabled is returned when no bucket is configured.
var ErrDisabled = errors.New("image uploads are not configured")

// Store saves an object and returns its public URL.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3Store struct {
	uploader   uploader
	bucket     string
	publicBase string
}

// NewS3Store builds an uploader from the default AWS credential chain.
func NewS3Store(ctx context.Context, bucket, publicBase string) (*S3Store, error) {
	if bucket == "" {
		return nil, ErrDisabled
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return newS3Store(manager.NewUploader(s3.NewFromConfig(cfg)), bucket, publicBase), nil
}

func newS3Store(u uploader, bucket, publicBase string) *S3Store {
	return &S3Store{uploader: u, bucket: bucket, publicBase: strings.TrimRight(publicBase, "/")}
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ACL:         types.ObjectCannedACLPublicRead,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	if s.publicBase != "" {
		return s.publicBase + "/" + key, nil
	}
	return out.Location, nil
}
