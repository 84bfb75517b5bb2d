// Package s3 implements a file store on S3-compatible object storage
// (AWS S3, Cloudflare R2, MinIO). Folders are key prefixes.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/vietddude/crosspost/internal/core/domain"
	"github.com/vietddude/crosspost/internal/infra/filestore"
)

// DefaultLinkTTL is how long presigned links stay valid.
const DefaultLinkTTL = 4 * time.Hour

// Config holds S3 store settings.
type Config struct {
	// Bucket is the bucket name (required).
	Bucket string
	// Prefix is prepended to every folder (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom endpoint for S3-compatible providers.
	Endpoint string
	// UsePathStyle forces path-style addressing, needed by most
	// S3-compatible providers.
	UsePathStyle bool
	LinkTTL      time.Duration
	Folders      filestore.Folders
}

// API is the subset of the S3 client the store uses.
type API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner creates presigned GET requests.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Store is a filestore.FileStore backed by an S3 bucket.
type Store struct {
	cfg     Config
	client  API
	presign Presigner
	pick    func(n int) int
}

// New loads AWS config from the default credential chain and creates a store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return NewWithClient(cfg, client, s3.NewPresignClient(client)), nil
}

// NewWithClient creates a store over an existing client.
func NewWithClient(cfg Config, client API, presign Presigner) *Store {
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = DefaultLinkTTL
	}
	return &Store{cfg: cfg, client: client, presign: presign, pick: rand.IntN}
}

func (s *Store) folderPrefix(folder string) string {
	p := path.Join(strings.Trim(s.cfg.Prefix, "/"), strings.Trim(folder, "/"))
	if p == "" || p == "." {
		return ""
	}
	return p + "/"
}

// listFiles returns the objects directly inside prefix.
func (s *Store) listFiles(ctx context.Context, prefix string) ([]types.Object, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.cfg.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var objects []types.Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			objects = append(objects, obj)
		}
	}
	return objects, nil
}

// Fetch picks a random object from the source folder.
func (s *Store) Fetch(ctx context.Context, source domain.SourceID) (*domain.FileRef, error) {
	folder, err := s.cfg.Folders.For(source)
	if err != nil {
		return nil, err
	}
	objects, err := s.listFiles(ctx, s.folderPrefix(folder))
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, nil
	}

	obj := objects[s.pick(len(objects))]
	key := aws.ToString(obj.Key)
	return &domain.FileRef{
		ID:   key,
		Name: path.Base(key),
		Path: key,
		Size: aws.ToInt64(obj.Size),
	}, nil
}

// Download streams the object into dir.
func (s *Store) Download(ctx context.Context, ref *domain.FileRef, dir string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(ref.Path),
	})
	if err != nil {
		return "", fmt.Errorf("get %s: %w", ref.Path, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	dest := filepath.Join(dir, "temp_"+ref.Name)
	file, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, out.Body); err != nil {
		file.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("download %s: %w", ref.Path, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(dest)
		return "", err
	}
	return dest, nil
}

// TempLink presigns a GET for the object.
func (s *Store) TempLink(ctx context.Context, ref *domain.FileRef) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(ref.Path),
	}, s3.WithPresignExpires(s.cfg.LinkTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", ref.Path, err)
	}
	return req.URL, nil
}

// Delete removes the object.
func (s *Store) Delete(ctx context.Context, ref *domain.FileRef) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(ref.Path),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", ref.Path, err)
	}
	return nil
}

// Quarantine copies the object under the quarantine prefix, picking a free
// name, then deletes the original. Prefixes need no creation.
func (s *Store) Quarantine(ctx context.Context, ref *domain.FileRef, source domain.SourceID) (string, error) {
	prefix := s.folderPrefix(s.cfg.Folders.QuarantineDir(source))

	dest, err := s.freeKey(ctx, prefix, ref.Name)
	if err != nil {
		return "", err
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.cfg.Bucket),
		CopySource: aws.String(copySource(s.cfg.Bucket, ref.Path)),
		Key:        aws.String(dest),
	})
	if err != nil {
		return "", fmt.Errorf("copy %s to %s: %w", ref.Path, dest, err)
	}
	if err := s.Delete(ctx, ref); err != nil {
		return dest, err
	}
	return dest, nil
}

func (s *Store) freeKey(ctx context.Context, prefix, name string) (string, error) {
	for n := 0; n < filestore.MaxRenameAttempts; n++ {
		key := prefix + filestore.CandidateName(name, n)
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			continue
		}
		if isNotFound(err) {
			return key, nil
		}
		return "", fmt.Errorf("head %s: %w", key, err)
	}
	return "", fmt.Errorf("no free quarantine name for %s", name)
}

// FolderStats counts objects per source folder.
func (s *Store) FolderStats(ctx context.Context) (domain.FolderStats, error) {
	stats := domain.FolderStats{Folders: make(map[domain.SourceID]int)}
	for _, src := range domain.Sources {
		folder, err := s.cfg.Folders.For(src.ID)
		if err != nil {
			continue
		}
		objects, err := s.listFiles(ctx, s.folderPrefix(folder))
		if err != nil {
			return stats, err
		}
		stats.Folders[src.ID] = len(objects)
		stats.Total += len(objects)
	}
	return stats, nil
}

func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "404":
			return true
		}
	}
	return false
}

var _ filestore.FileStore = (*Store)(nil)
