package importer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
	"github.com/pageza/recipeshare/backend/config"
	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/pageza/recipeshare/backend/internal/types"
)

// Decode reads one JSON batch. Unknown fields are rejected so that
// misspelled keys do not silently drop data.
func Decode(r io.Reader) (types.Batch, error) {
	var batch types.Batch
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&batch); err != nil {
		return types.Batch{}, apperror.Wrap(apperror.KindImport, op, err, "malformed batch")
	}
	return batch, nil
}

// LoadFile decodes a batch from a local JSON file.
func LoadFile(path string) (types.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Batch{}, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// ObjectGetter is the part of the S3 client used to fetch batches.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source fetches batches stored as objects in one bucket.
type S3Source struct {
	client ObjectGetter
	bucket string
}

func NewS3Source(cfg *config.S3Config) *S3Source {
	return &S3Source{client: cfg.Client, bucket: cfg.BucketName}
}

// Load decodes the batch stored under key.
func (s *S3Source) Load(ctx context.Context, key string) (types.Batch, error) {
	if s.bucket == "" {
		return types.Batch{}, apperror.Validation(op, "no S3 bucket configured")
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return types.Batch{}, fmt.Errorf("failed to fetch s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()
	return Decode(out.Body)
}
