package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"permaudit/internal/config"
)

// S3Publisher archives audit artifacts in an S3 bucket:
//
//	<prefix>/pages/<key>
//	<prefix>/snapshots/<hostID>.db
//	<prefix>/snapshots/<hostID>.version
//
// Credentials come from the configured static key pair when set, otherwise
// the default AWS credential chain (environment, shared config, instance
// role).
type S3Publisher struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Publisher creates an S3 archive from the publish configuration.
func NewS3Publisher(ctx context.Context, cfg config.PublishConfig) (*S3Publisher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Publisher{
		name:     cfg.Name,
		bucket:   cfg.S3Bucket,
		prefix:   strings.Trim(cfg.S3Prefix, "/"),
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

var _ Publisher = (*S3Publisher)(nil)

func (p *S3Publisher) PutPage(key string, r io.Reader, size int64) error {
	return p.upload(p.objectKey("pages", key), r)
}

func (p *S3Publisher) GetPage(key string, w io.Writer) error {
	return p.download(p.objectKey("pages", key), w, fmt.Sprintf("page not found: %s", key))
}

func (p *S3Publisher) PutSnapshot(hostID string, r io.Reader, size int64, version int64) error {
	if err := p.upload(p.objectKey("snapshots", hostID+".db"), r); err != nil {
		return err
	}
	versionData := strconv.FormatInt(version, 10)
	return p.upload(p.objectKey("snapshots", hostID+".version"), strings.NewReader(versionData))
}

func (p *S3Publisher) GetSnapshot(hostID string, w io.Writer) error {
	return p.download(p.objectKey("snapshots", hostID+".db"), w,
		fmt.Sprintf("snapshot not found for host: %s", hostID))
}

// SnapshotVersion returns 0 if no version object exists.
func (p *S3Publisher) SnapshotVersion(hostID string) (int64, error) {
	var buf bytes.Buffer
	out, err := p.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.objectKey("snapshots", hostID+".version")),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version object: %w", err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(&buf, out.Body); err != nil {
		return 0, fmt.Errorf("reading version object: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(buf.String()), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the bucket exists and is reachable.
func (p *S3Publisher) ValidateSetup() error {
	_, err := p.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(p.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", p.bucket, err)
	}
	return nil
}

func (p *S3Publisher) objectKey(parts ...string) string {
	if p.prefix != "" {
		parts = append([]string{p.prefix}, parts...)
	}
	return path.Join(parts...)
}

func (p *S3Publisher) upload(key string, r io.Reader) error {
	_, err := p.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

func (p *S3Publisher) download(key string, w io.Writer, notFoundMsg string) error {
	out, err := p.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("%s", notFoundMsg)
		}
		return fmt.Errorf("downloading %s: %w", key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	return nil
}
