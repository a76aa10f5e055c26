package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "github.com/avo-tools/sarsync/internal/config"
	"github.com/avo-tools/sarsync/internal/domain"
)

const checksumMetadataKey = "sarsync-sha256"

// S3Transfer mirrors the archive into an S3 bucket, one object per file under
// the configured prefix. Objects carrying a matching checksum are skipped, so
// re-running a sync with unchanged content uploads nothing.
type S3Transfer struct {
	client    *s3.Client
	uploader  *s3manager.Uploader
	bucket    string
	prefix    string
	name      string
	sourceDir string
}

func NewS3(cfg *appconfig.TargetConfig, sourceDir string) (*S3Transfer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	return &S3Transfer{
		client:    client,
		uploader:  s3manager.NewUploader(client),
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		name:      cfg.DisplayName(),
		sourceDir: sourceDir,
	}, nil
}

func (s *S3Transfer) Name() string {
	return s.name
}

func (s *S3Transfer) Type() string {
	return "s3"
}

func (s *S3Transfer) Mirror(ctx context.Context, snapshot *domain.Snapshot) (*domain.TransferReport, error) {
	start := time.Now()
	report := domain.NewTransferReport()

	for _, file := range snapshot.Files {
		uploaded, err := s.mirrorFile(ctx, file)
		if err != nil {
			report.Pending = append(report.Pending, remaining(snapshot, report.Confirmed)...)
			report.Duration = time.Since(start)
			return report, fmt.Errorf("upload %s to s3: %w", file.RelPath, err)
		}
		if uploaded {
			report.Transferred++
		}
		report.Confirmed[file.RelPath] = true
	}

	report.Duration = time.Since(start)
	return report, nil
}

// mirrorFile uploads one archive file unless an object with the same checksum
// is already present. Returns whether an upload actually happened.
func (s *S3Transfer) mirrorFile(ctx context.Context, file domain.ArchiveFile) (bool, error) {
	key := s.key(file.RelPath)

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err == nil {
		if head.Metadata[checksumMetadataKey] == file.Checksum {
			return false, nil
		}
	} else {
		var notFound *types.NotFound
		if !errors.As(err, &notFound) {
			return false, fmt.Errorf("failed to probe object: %w", err)
		}
	}

	f, err := os.Open(filepath.Join(s.sourceDir, filepath.FromSlash(file.RelPath)))
	if err != nil {
		return false, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:   &s.bucket,
		Key:      &key,
		Body:     f,
		Metadata: map[string]string{checksumMetadataKey: file.Checksum},
	})
	if err != nil {
		return false, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return true, nil
}

// ListOlderThan returns object names under the prefix last modified before
// the cutoff.
func (s *S3Transfer) ListOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: &s.prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list S3 objects: %w", err)
	}

	var old []string
	for _, obj := range resp.Contents {
		if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
			continue
		}
		name := strings.TrimPrefix(strings.TrimPrefix(*obj.Key, s.prefix), "/")
		if name != "" {
			old = append(old, name)
		}
	}

	return old, nil
}

func (s *S3Transfer) Delete(ctx context.Context, remoteName string) error {
	key := s.key(remoteName)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

func (s *S3Transfer) key(relPath string) string {
	return path.Join(s.prefix, relPath)
}

func remaining(snapshot *domain.Snapshot, confirmed map[string]bool) []string {
	var rest []string
	for _, file := range snapshot.Files {
		if !confirmed[file.RelPath] {
			rest = append(rest, file.RelPath)
		}
	}
	return rest
}
