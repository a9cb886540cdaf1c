package dataset

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Source loads raw launch records from somewhere.
type Source interface {
	Load(ctx context.Context) ([]LaunchRecord, error)
	String() string
}

// Load reads records from src and validates them into a Dataset.
func Load(ctx context.Context, src Source, knownSites []string) (*Dataset, error) {
	records, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset from %s: %w", src, err)
	}
	ds, err := New(records, knownSites)
	if err != nil {
		return nil, fmt.Errorf("invalid dataset from %s: %w", src, err)
	}
	return ds, nil
}

// RecordsSource serves records already held in memory.
type RecordsSource struct {
	Name    string
	Records []LaunchRecord
}

func (s RecordsSource) Load(ctx context.Context) ([]LaunchRecord, error) {
	return s.Records, nil
}

func (s RecordsSource) String() string {
	if s.Name == "" {
		return "memory"
	}
	return s.Name
}

// =============================================================================
// FILE
// =============================================================================

// FileSource reads a CSV file from local disk.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) ([]LaunchRecord, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

func (s FileSource) String() string {
	return s.Path
}

// =============================================================================
// S3
// =============================================================================

// ObjectGetter is the subset of the S3 client used by S3Source.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads a CSV object from S3.
type S3Source struct {
	Bucket string
	Key    string
	Client ObjectGetter
}

// NewS3Source builds an S3Source for an s3://bucket/key URI using the
// default AWS credential chain. region may be empty.
func NewS3Source(ctx context.Context, uri, region string) (*S3Source, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Source{
		Bucket: bucket,
		Key:    key,
		Client: s3.NewFromConfig(cfg),
	}, nil
}

func (s *S3Source) Load(ctx context.Context) ([]LaunchRecord, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()
	return ReadCSV(out.Body)
}

func (s *S3Source) String() string {
	return "s3://" + s.Bucket + "/" + s.Key
}

// ParseS3URI splits s3://bucket/key into its parts.
func ParseS3URI(uri string) (string, string, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri must be s3://bucket/key, got %q", uri)
	}
	return bucket, key, nil
}
