package s3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectBaseURL(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{
			name: "public url wins",
			opts: Options{Bucket: "media", Endpoint: "http://minio:9000", PublicURL: "https://cdn.example.com/"},
			want: "https://cdn.example.com",
		},
		{
			name: "path style for custom endpoint",
			opts: Options{Bucket: "media", Endpoint: "http://minio:9000/"},
			want: "http://minio:9000/media",
		},
		{
			name: "aws virtual host",
			opts: Options{Bucket: "media", Region: "us-east-1"},
			want: "https://media.s3.us-east-1.amazonaws.com",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, objectBaseURL(tt.opts))
		})
	}
}

func TestNewS3BlobStore_RequiresBucket(t *testing.T) {
	_, err := NewS3BlobStore(context.Background(), Options{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestNewS3BlobStore_StaticCredentials(t *testing.T) {
	store, err := NewS3BlobStore(context.Background(), Options{
		Bucket:    "media",
		Region:    "us-east-1",
		Endpoint:  "http://localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/media", store.baseURL)
	assert.Equal(t, "media", store.bucket)
}
