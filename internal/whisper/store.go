package whisper

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// AudioStore keeps uploaded clips in object storage and hands the provider a
// short-lived URL to fetch them.
type AudioStore interface {
	Put(ctx context.Context, key, mime string, data []byte) error
	PresignGet(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	KeyFor(userID, numberID, name string) string
}

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store implements AudioStore on an S3 bucket.
type S3Store struct {
	client  s3API
	presign *s3.PresignClient
	bucket  string
	prefix  string
	ttl     time.Duration
}

type S3Options struct {
	Region     string
	Bucket     string
	Prefix     string
	PresignTTL time.Duration
}

// NewS3Store loads credentials from the default AWS chain (env, shared
// config, instance role).
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("whisper: load aws config: %w", err)
	}
	return NewS3StoreFromClient(s3.NewFromConfig(cfg), opts), nil
}

func NewS3StoreFromClient(client *s3.Client, opts S3Options) *S3Store {
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 15 * time.Minute
	}
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  opts.Bucket,
		prefix:  strings.Trim(opts.Prefix, "/"),
		ttl:     opts.PresignTTL,
	}
}

func (s *S3Store) KeyFor(userID, numberID, name string) string {
	return path.Join(s.prefix, "whispers", userID, numberID, name)
}

func (s *S3Store) Put(ctx context.Context, key, mime string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(mime),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("whisper: s3 put %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("whisper: s3 presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("whisper: s3 delete %s: %w", key, err)
	}
	return nil
}
