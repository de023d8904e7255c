// Package archive copies uploaded workbooks to S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gunturawaludins/mkbd-new/internal/config"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeXLS  = "application/vnd.ms-excel"
	contentTypeBin  = "application/octet-stream"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectPutter is the subset of the S3 client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver stores uploads under prefix/YYYY/MM/DD/checksum/file.
type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// New builds an archiver from cfg using the default AWS credential chain.
// It returns nil, nil when archiving is disabled.
func New(ctx context.Context, cfg config.ArchiveConfig, logger *slog.Logger) (*S3Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewWithClient(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client ObjectPutter, bucket, prefix string, logger *slog.Logger) *S3Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.With(slog.String("component", "archive")),
		now:    time.Now,
	}
}

// Key returns the object key for an upload.
func (a *S3Archiver) Key(checksum, fileName string) string {
	name := unsafeKeyChars.ReplaceAllString(path.Base(strings.ReplaceAll(fileName, "\\", "/")), "_")
	if name == "" || name == "." || name == "_" {
		name = "upload"
	}
	return path.Join(a.prefix, a.now().UTC().Format("2006/01/02"), checksum, name)
}

// Archive uploads data and returns its key.
func (a *S3Archiver) Archive(ctx context.Context, checksum, fileName string, data []byte) (string, error) {
	key := a.Key(checksum, fileName)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(fileName)),
		Metadata:    map[string]string{"checksum": checksum},
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3 (bucket %s, key %s): %w", a.bucket, key, err)
	}
	a.logger.InfoContext(ctx, "upload archived",
		slog.String("bucket", a.bucket),
		slog.String("key", key),
		slog.Int("bytes", len(data)))
	return key, nil
}

func contentType(fileName string) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".xlsx":
		return contentTypeXLSX
	case ".xls":
		return contentTypeXLS
	default:
		return contentTypeBin
	}
}
