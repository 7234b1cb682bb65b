// Package objectstore uploads files to S3 and returns their public URLs.
package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config holds the S3 region and optional static credentials. Without
// credentials the default AWS chain (env, shared config, instance role) is used.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store uploads objects to S3.
type Store struct {
	api    putObjectAPI
	region string
	logger *slog.Logger
}

// New builds a Store from cfg.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return newStore(s3.NewFromConfig(awsCfg), cfg.Region, logger), nil
}

func newStore(api putObjectAPI, region string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{api: api, region: region, logger: logger}
}

// Upload puts the file at localPath into bucket under objectName, or under the
// file's base name when objectName is empty, and returns the object's URL.
func (s *Store) Upload(ctx context.Context, localPath, bucket, objectName string) (string, error) {
	if objectName == "" {
		objectName = filepath.Base(localPath)
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(objectName),
		Body:        f,
		ContentType: aws.String(ContentType(objectName)),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s to s3://%s/%s: %w", localPath, bucket, objectName, err)
	}
	url := PublicURL(bucket, s.region, objectName)
	s.logger.Info("uploaded object", "bucket", bucket, "key", objectName, "url", url)
	return url, nil
}

// PublicURL is the virtual-hosted-style URL of an object.
func PublicURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

// ContentType guesses the MIME type from the file extension, defaulting to
// image/jpeg.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".jpg", ".jpeg", "":
		return "image/jpeg"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "image/jpeg"
}
