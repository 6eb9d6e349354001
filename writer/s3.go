package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "normflow/config"
	"normflow/logger"
)

// s3Uploader mirrors finished parquet files into an S3 bucket.
type s3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
	log    *logger.Entry
}

func newS3Uploader(cfg appconfig.S3Config) (*s3Uploader, error) {
	ctx := context.Background()
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &s3Uploader{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    logger.GetLogger().WithComponent("writer.s3"),
	}, nil
}

func (u *s3Uploader) Upload(ctx context.Context, name string, data []byte) error {
	key := path.Join(u.prefix, name)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("put object s3://%s/%s: %w", u.bucket, key, err)
	}
	u.log.WithFields(logger.Fields{"bucket": u.bucket, "key": key, "size": len(data)}).Info("uploaded parquet file")
	return nil
}
