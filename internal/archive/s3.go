package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"meetingrec/internal/domain"
	"meetingrec/internal/logging"
)

type uploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archiver copies a finished meeting folder to an S3 bucket after export.
type S3Archiver struct {
	bucket   string
	prefix   string
	uploader uploadAPI
	logger   *zap.Logger
}

// NewS3Archiver resolves credentials the standard AWS way (env, shared
// config, instance role).
func NewS3Archiver(ctx context.Context, bucket, region, prefix string) (*S3Archiver, error) {
	if bucket == "" || region == "" {
		return nil, errors.New("s3 bucket and region are required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	uploader := manager.NewUploader(s3.NewFromConfig(cfg))
	return newS3Archiver(bucket, prefix, uploader, logging.L("archive")), nil
}

func newS3Archiver(bucket, prefix string, uploader uploadAPI, logger *zap.Logger) *S3Archiver {
	return &S3Archiver{
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		uploader: uploader,
		logger:   logger,
	}
}

func (a *S3Archiver) Name() string {
	return "archive"
}

// AfterExport uploads every file under the session directory to
// <prefix>/<session id>/<relative path>.
func (a *S3Archiver) AfterExport(ctx context.Context, session domain.Session, _ domain.Report) error {
	uploaded := 0
	err := filepath.WalkDir(session.Dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(session.Dir, p)
		if err != nil {
			return err
		}
		if err := a.upload(ctx, p, a.key(session.ID, rel)); err != nil {
			return err
		}
		uploaded++
		return nil
	})
	if err != nil {
		return fmt.Errorf("archive %s: %w", session.ID, err)
	}
	a.logger.Info("meeting archived",
		zap.String(logging.KeySessionID, session.ID),
		zap.String("bucket", a.bucket),
		zap.Int("files", uploaded),
	)
	return nil
}

func (a *S3Archiver) key(sessionID, rel string) string {
	return path.Join(a.prefix, sessionID, filepath.ToSlash(rel))
}

func (a *S3Archiver) upload(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer file.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   file,
	}
	if contentType := mime.TypeByExtension(filepath.Ext(localPath)); contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := a.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
