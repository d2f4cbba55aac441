package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/shardsnap/shardsnap/internal/compression"
)

// S3Sink uploads artifacts to an S3 bucket.
type S3Sink struct {
	bucket           string
	prefix           string
	region           string
	compression      string
	endpoint         string
	accessKey        string
	secretKey        string
	disableChecksums bool

	Client PutObjectAPI // test only; nil in prod, set by test
}

// PutObjectAPI abstracts the S3 PutObject method (for testing)
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func NewS3Sink(opts map[string]interface{}) (Sink, error) {
	bucket, _ := opts["bucket"].(string)
	prefix, _ := opts["prefix"].(string)
	region, _ := opts["region"].(string)
	compression, _ := opts["compression"].(string)
	endpoint, _ := opts["endpoint"].(string)
	accessKey, _ := opts["access_key_id"].(string)
	secretKey, _ := opts["secret_access_key"].(string)

	var disableChecksums bool
	if v, ok := opts["disable_checksums"]; ok {
		disableChecksums = toBool(v)
	}

	if bucket == "" || region == "" {
		return nil, fmt.Errorf("s3 sink requires 'bucket' and 'region' options")
	}

	return &S3Sink{
		bucket:           bucket,
		prefix:           prefix,
		region:           region,
		compression:      compression,
		endpoint:         endpoint,
		accessKey:        accessKey,
		secretKey:        secretKey,
		disableChecksums: disableChecksums,
	}, nil
}

func (s *S3Sink) client(ctx context.Context) (PutObjectAPI, error) {
	if s.Client != nil {
		return s.Client, nil
	}
	awsCfgOpts := []func(*config.LoadOptions) error{
		config.WithRegion(s.region),
	}
	if s.accessKey != "" {
		awsCfgOpts = append(awsCfgOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.accessKey, s.secretKey, ""),
		))
	}
	if s.disableChecksums {
		awsCfgOpts = append(awsCfgOpts, config.WithRequestChecksumCalculation(0))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, awsCfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.endpoint != "" {
			o.BaseEndpoint = &s.endpoint
			o.UsePathStyle = true
		}
	}), nil
}

func (s *S3Sink) Open(ctx context.Context, name string) (io.WriteCloser, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	key := s.prefix + name + compression.Ext(s.compression)

	pr, pw := io.Pipe()
	errCh := make(chan error, 1)
	go func() {
		defer pr.Close()
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: &s.bucket,
			Key:    &key,
			Body:   pr,
		})
		if err != nil {
			_ = pr.CloseWithError(err)
		}
		errCh <- err
	}()

	w, err := compression.NewWriter(pw, s.compression)
	if err != nil {
		pw.Close()
		return nil, err
	}
	return &uploadWriter{compressor: w, pipe: pw, errCh: errCh}, nil
}

func init() {
	Register("s3", NewS3Sink)
}
