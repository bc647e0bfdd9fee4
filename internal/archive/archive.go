// Package archive keeps uploaded photos in S3.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the part of the S3 client the archive uses.
//
//go:generate mockgen -package=archive_test -destination=mock_put_object_api_test.go -source=archive.go PutObjectAPI
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive writes photos under <prefix>/<yyyy>/<mm>/<id><ext>.
type S3Archive struct {
	client PutObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// New wraps an S3 client.
func New(client PutObjectAPI, bucket, prefix string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), now: time.Now}
}

// NewS3 loads the default AWS credential chain for region.
func NewS3(ctx context.Context, bucket, region, prefix string) (*S3Archive, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(s3.NewFromConfig(awsCfg), bucket, prefix), nil
}

// KeyFor names the object for a draft id and its uploaded filename.
func (a *S3Archive) KeyFor(id, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	t := a.now().UTC()
	return path.Join(a.prefix, t.Format("2006"), t.Format("01"), id+ext)
}

// Put uploads body and returns its s3:// URL.
func (a *S3Archive) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}
