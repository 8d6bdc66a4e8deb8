package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3Store_RequiresBucketAndCredentials(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Bucket: "rankboard"})
	assert.Error(t, err)

	_, err = NewS3Store(context.Background(), S3Config{AccessKeyID: "id", SecretAccessKey: "secret"})
	assert.Error(t, err)
}

func TestS3Store_KeyLayout(t *testing.T) {
	s, err := NewS3Store(context.Background(), S3Config{
		Endpoint:        "http://localhost:9000",
		Bucket:          "rankboard",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio-secret",
		Prefix:          "prod/",
	})
	require.NoError(t, err)

	assert.Equal(t, "prod/submissions/submission_3_7_abc.pdf", s.key(BucketSubmissions, "submission_3_7_abc.pdf"))
	assert.Equal(t, "prod/avatars/avatar_3_abc.png", s.key(BucketAvatars, "avatar_3_abc.png"))
}
