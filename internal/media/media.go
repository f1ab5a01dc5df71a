// Package media uploads product images to S3-compatible object storage.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	MaxFiles     = 10
	MaxFileBytes = 10 << 20

	defaultFolder = "products"
)

var (
	ErrNoFiles          = errors.New("no files uploaded")
	ErrTooManyFiles     = fmt.Errorf("at most %d files can be uploaded at once", MaxFiles)
	ErrFileTooLarge     = fmt.Errorf("file exceeds %d MB", MaxFileBytes>>20)
	ErrUnsupportedImage = errors.New("file is not a supported image")
)

// Uploader is the subset of manager.Uploader used by Host.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type File struct {
	Name string
	Data []byte
}

// Asset describes one stored image.
type Asset struct {
	URL    string `json:"url"`
	Key    string `json:"key"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Bytes  int    `json:"bytes"`
}

type Host struct {
	uploader      Uploader
	bucket        string
	publicBaseURL string
}

func NewHost(uploader Uploader, bucket, publicBaseURL string) *Host {
	return &Host{
		uploader:      uploader,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// NewS3Host builds a Host from the default AWS credential chain.
func NewS3Host(ctx context.Context, bucket, region, publicBaseURL string) (*Host, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewHost(manager.NewUploader(s3.NewFromConfig(cfg)), bucket, publicBaseURL), nil
}

// Validate checks batch limits and decodes every image header.
func Validate(files []File) ([]image.Config, []string, error) {
	if len(files) == 0 {
		return nil, nil, ErrNoFiles
	}
	if len(files) > MaxFiles {
		return nil, nil, ErrTooManyFiles
	}

	configs := make([]image.Config, len(files))
	formats := make([]string, len(files))
	for i, file := range files {
		if len(file.Data) > MaxFileBytes {
			return nil, nil, fmt.Errorf("%s: %w", file.Name, ErrFileTooLarge)
		}
		cfg, format, err := image.DecodeConfig(bytes.NewReader(file.Data))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", file.Name, ErrUnsupportedImage)
		}
		configs[i] = cfg
		formats[i] = format
	}
	return configs, formats, nil
}

// UploadAll uploads every file concurrently. The first failure cancels the
// remaining uploads and fails the batch.
func (h *Host) UploadAll(ctx context.Context, folder string, files []File) ([]Asset, error) {
	configs, formats, err := Validate(files)
	if err != nil {
		return nil, err
	}
	folder = cleanFolder(folder)

	assets := make([]Asset, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i := range files {
		i := i
		g.Go(func() error {
			file := files[i]
			key := objectKey(folder, file.Name, formats[i])

			out, err := h.uploader.Upload(gctx, &s3.PutObjectInput{
				Bucket:      aws.String(h.bucket),
				Key:         aws.String(key),
				Body:        bytes.NewReader(file.Data),
				ContentType: aws.String("image/" + formats[i]),
			})
			if err != nil {
				return fmt.Errorf("failed to upload %s: %w", file.Name, err)
			}

			assets[i] = Asset{
				URL:    h.objectURL(key, out),
				Key:    key,
				Width:  configs[i].Width,
				Height: configs[i].Height,
				Format: formats[i],
				Bytes:  len(file.Data),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return assets, nil
}

func (h *Host) objectURL(key string, out *manager.UploadOutput) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL + "/" + key
	}
	if out != nil {
		return out.Location
	}
	return ""
}

func objectKey(folder, name, format string) string {
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(name, "\\", "/")), path.Ext(name))
	base = sanitize(base)
	if base == "" {
		base = "image"
	}
	return fmt.Sprintf("%s/%s-%s.%s", folder, uuid.NewString(), base, format)
}

func cleanFolder(folder string) string {
	parts := strings.Split(folder, "/")
	kept := parts[:0]
	for _, part := range parts {
		if part = sanitize(part); part != "" {
			kept = append(kept, part)
		}
	}
	if len(kept) == 0 {
		return defaultFolder
	}
	return strings.Join(kept, "/")
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
