package transport

import (
	"bytes"
	"context"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Test seams, replaced in unit tests to avoid real AWS wiring.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3PutObjectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// s3PutObjectAPI is the slice of the S3 client the transport needs.
type s3PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads files as objects into a bucket. A custom endpoint makes it work
// against MinIO-compatible home NAS targets as well as AWS.
type S3 struct {
	endpoint string
	region   string
	bucket   string
	user     string
	password string

	client s3PutObjectAPI
}

// NewS3 returns an S3 transport with static credentials. The client is built
// lazily on first upload so constructing the agent never touches the network.
func NewS3(endpoint, region, bucket, user, password string) *S3 {
	return &S3{endpoint: endpoint, region: region, bucket: bucket, user: user, password: password}
}

func (t *S3) Name() string { return "s3" }

func (t *S3) getClient(ctx context.Context) (s3PutObjectAPI, error) {
	if t.client != nil {
		return t.client, nil
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(t.region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			t.user, t.password, "",
		)))
	if err != nil {
		return nil, permanentf("aws config: %v", err)
	}

	t.client = newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if t.endpoint != "" {
			o.BaseEndpoint = aws.String(t.endpoint)
			o.UsePathStyle = true
		}
	})
	return t.client, nil
}

// Upload puts the file content at key remotePath. SDK-level request retries
// are left to the SDK's own retryer; failures that escape it are treated as
// transient so the file stays pending for the next session.
func (t *S3) Upload(ctx context.Context, localPath, remotePath string) (int64, time.Duration, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return 0, 0, permanentf("read %s: %v", localPath, err)
	}

	client, err := t.getClient(ctx)
	if err != nil {
		return 0, 0, err
	}

	start := time.Now()
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(path.Clean(remotePath)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return 0, 0, transientf("put object %s: %v", remotePath, err)
	}

	return int64(len(data)), time.Since(start), nil
}
