// Package storage archives catalogue exports in S3-compatible object storage
// such as Digital Ocean Spaces or MinIO.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/birbparty/shelf/sdk"
)

const (
	exportPrefix = "exports/"
	dateLayout   = "2006-01-02"
)

// ErrNotConfigured is returned by NewConfigFromEnv when no bucket is set
var ErrNotConfigured = errors.New("export archive is not configured")

// Config contains configuration for the export bucket
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PathStyle addresses the bucket in the path, as MinIO expects
	PathStyle bool
}

// NewConfigFromEnv reads SHELF_ARCHIVE_* variables
func NewConfigFromEnv() (*Config, error) {
	cfg := &Config{
		Endpoint:  os.Getenv("SHELF_ARCHIVE_ENDPOINT"),
		Region:    getEnvOrDefault("SHELF_ARCHIVE_REGION", "us-east-1"),
		Bucket:    os.Getenv("SHELF_ARCHIVE_BUCKET"),
		AccessKey: os.Getenv("SHELF_ARCHIVE_ACCESS_KEY"),
		SecretKey: os.Getenv("SHELF_ARCHIVE_SECRET_KEY"),
	}
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	pathStyle, err := strconv.ParseBool(getEnvOrDefault("SHELF_ARCHIVE_PATH_STYLE", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHELF_ARCHIVE_PATH_STYLE: %w", err)
	}
	cfg.PathStyle = pathStyle
	return cfg, nil
}

// ExportArchiver stores catalogue exports under exports/YYYY-MM-DD/<filename>
type ExportArchiver struct {
	client s3iface.S3API
	bucket string
	now    func() time.Time
}

// NewExportArchiver creates an archiver talking to the configured endpoint
func NewExportArchiver(config *Config) (*ExportArchiver, error) {
	awsConfig := &aws.Config{
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(config.PathStyle),
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint) // e.g., "nyc3.digitaloceanspaces.com"
	}
	if config.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return NewExportArchiverWithClient(s3.New(sess), config.Bucket), nil
}

// NewExportArchiverWithClient wraps an existing S3 client
func NewExportArchiverWithClient(client s3iface.S3API, bucket string) *ExportArchiver {
	return &ExportArchiver{
		client: client,
		bucket: bucket,
		now:    time.Now,
	}
}

// Key returns the object key for filename archived at t
func Key(filename string, t time.Time) (string, error) {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("invalid export filename %q", filename)
	}
	return exportPrefix + t.UTC().Format(dateLayout) + "/" + name, nil
}

// Upload stores file and returns its object key
func (a *ExportArchiver) Upload(ctx context.Context, file *sdk.ExportFile) (string, error) {
	if file == nil {
		return "", fmt.Errorf("export file is nil")
	}

	now := a.now()
	key, err := Key(file.Filename, now)
	if err != nil {
		return "", err
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(file.Data),
		ContentLength: aws.Int64(int64(len(file.Data))),
		ContentType:   aws.String(contentType),
		Metadata: map[string]*string{
			"original-filename": aws.String(file.Filename),
			"archive-time":      aws.String(now.UTC().Format(time.RFC3339)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}

	return key, nil
}

// Get retrieves an archived export
func (a *ExportArchiver) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := a.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get export: %w", err)
	}

	return result.Body, nil
}

// List returns the keys archived on date
func (a *ExportArchiver) List(ctx context.Context, date time.Time) ([]string, error) {
	return a.list(ctx, exportPrefix+date.UTC().Format(dateLayout)+"/")
}

// ListAll returns every archived export key
func (a *ExportArchiver) ListAll(ctx context.Context) ([]string, error) {
	return a.list(ctx, exportPrefix)
}

// ArchivedOn returns the archive date encoded in key
func ArchivedOn(key string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(key, exportPrefix)
	if !ok {
		return time.Time{}, false
	}
	day, _, ok := strings.Cut(rest, "/")
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, day)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (a *ExportArchiver) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := a.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}

	return keys, nil
}

// Delete removes an archived export
func (a *ExportArchiver) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete export: %w", err)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
