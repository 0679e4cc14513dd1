package s3client

import (
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appConfig "dbxdl/config"
	"dbxdl/internal/models"
	"dbxdl/internal/remote/cursor"
)

const delimiter = "/"

// API is the subset of the S3 client used for listing and content reads.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	manager.DownloadAPIClient
}

// Client presents an S3 bucket as a folder tree: common prefixes under
// the "/" delimiter are folders, objects are files.
type Client struct {
	s3Client API
	bucket   string
	pageSize int32
}

func New(ctx context.Context, cfg *appConfig.Config) (*Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
			},
		}))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Client *s3.Client
	if cfg.ApiURL != "" {
		s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.ApiURL)
			o.UsePathStyle = true
		})
	} else {
		s3Client = s3.NewFromConfig(awsConfig)
	}

	return NewFromAPI(s3Client, cfg.BucketName), nil
}

func NewFromAPI(api API, bucket string) *Client {
	return &Client{s3Client: api, bucket: bucket}
}

// WithPageSize limits the keys returned per listing call.
func (c *Client) WithPageSize(n int32) *Client {
	c.pageSize = n
	return c
}

func (c *Client) ListFolder(ctx context.Context, folder string) (*models.ListingPage, error) {
	return c.list(ctx, keyPrefix(folder), "")
}

func (c *Client) ListFolderContinue(ctx context.Context, cur string) (*models.ListingPage, error) {
	prefix, token, err := cursor.Decode(cur)
	if err != nil {
		return nil, err
	}
	return c.list(ctx, prefix, token)
}

func (c *Client) list(ctx context.Context, prefix, token string) (*models.ListingPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(delimiter),
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}
	if c.pageSize > 0 {
		input.MaxKeys = aws.Int32(c.pageSize)
	}

	out, err := c.s3Client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	entries := make([]models.Entry, 0, len(out.CommonPrefixes)+len(out.Contents))
	for _, cp := range out.CommonPrefixes {
		key := strings.TrimSuffix(aws.ToString(cp.Prefix), delimiter)
		entries = append(entries, models.Entry{
			Kind: models.KindFolder,
			Tag:  "prefix",
			ID:   aws.ToString(cp.Prefix),
			Name: path.Base(key),
			Path: "/" + key,
		})
	}
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		// Folder marker objects created by consoles.
		if key == prefix || strings.HasSuffix(key, delimiter) {
			continue
		}
		entries = append(entries, models.Entry{
			Kind: models.KindFile,
			Tag:  "object",
			ID:   strings.Trim(aws.ToString(obj.ETag), `"`),
			Name: path.Base(key),
			Path: "/" + key,
			Size: aws.ToInt64(obj.Size),
		})
	}
	// S3 returns prefixes and objects separately; merge back into key order.
	slices.SortStableFunc(entries, func(a, b models.Entry) int {
		return strings.Compare(a.Path, b.Path)
	})

	page := &models.ListingPage{
		Entries: entries,
		HasMore: aws.ToBool(out.IsTruncated),
	}
	if page.HasMore {
		page.Cursor = cursor.Encode(prefix, aws.ToString(out.NextContinuationToken))
	}
	return page, nil
}

// Download opens the object body as a stream. The caller closes it.
func (c *Client) Download(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	out, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(strings.TrimPrefix(remotePath, "/")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", remotePath, err)
	}
	return out.Body, nil
}

func keyPrefix(folder string) string {
	prefix := strings.Trim(folder, "/")
	if prefix == "" {
		return ""
	}
	return prefix + delimiter
}
