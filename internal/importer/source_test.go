package importer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const batchJSON = `{
	"users": [{"id": 1, "name": "alice", "gender": "Female", "age": 31, "follower_ids": [2]}],
	"recipes": [{"id": 10, "name": "Soup", "author_id": 1, "ingredients": ["salt"], "calories": 120.5}],
	"reviews": []
}`

func TestDecode(t *testing.T) {
	batch, err := Decode(strings.NewReader(batchJSON))
	require.NoError(t, err)
	require.Len(t, batch.Users, 1)
	assert.Equal(t, []int64{2}, batch.Users[0].FollowerIDs)
	require.Len(t, batch.Recipes, 1)
	require.NotNil(t, batch.Recipes[0].Calories)
	assert.Equal(t, 120.5, *batch.Recipes[0].Calories)

	_, err = Decode(strings.NewReader(`{"users": [{"id": 1, "nmae": "typo"}]}`))
	assert.True(t, errors.Is(err, apperror.ErrImport))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(batchJSON), 0o600))

	batch, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", batch.Users[0].Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

type fakeS3 struct {
	bucket, key string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket, f.key = aws.ToString(in.Bucket), aws.ToString(in.Key)
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(batchJSON))}, nil
}

func TestS3SourceLoad(t *testing.T) {
	fake := &fakeS3{}
	src := &S3Source{client: fake, bucket: "batches"}

	batch, err := src.Load(context.Background(), "2024/01.json")
	require.NoError(t, err)
	assert.Equal(t, "batches", fake.bucket)
	assert.Equal(t, "2024/01.json", fake.key)
	assert.Len(t, batch.Recipes, 1)

	_, err = (&S3Source{client: fake}).Load(context.Background(), "x")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
