package s3

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
)

// TestBackendWithMinIO runs against a MinIO server:
// docker run -p 9000:9000 minio/minio server /data
func TestBackendWithMinIO(t *testing.T) {
	if os.Getenv("MINIO_INTEGRATION_TEST") == "" {
		t.Skip("Skipping MinIO integration test. Set MINIO_INTEGRATION_TEST=1 to run.")
	}

	config := Config{
		Region:                 "us-east-1",
		Bucket:                 "portfolio-test-" + time.Now().Format("20060102150405"),
		AccessKeyID:            "minioadmin",
		SecretAccessKey:        "minioadmin",
		Endpoint:               "http://localhost:9000",
		UsePathStyle:           true,
		CreateBucketIfNotExist: true,
	}
	ctx := context.Background()
	backend, err := New(ctx, config)
	require.NoError(t, err)

	key := "1700000000000_logo.txt"
	content := "Hello, MinIO!"

	_, err = backend.Upload(ctx, key, strings.NewReader(content), portfolio.UploadOptions{CacheControl: "3600", ContentType: "text/plain"})
	require.NoError(t, err)

	_, err = backend.Upload(ctx, key, strings.NewReader("again"), portfolio.UploadOptions{})
	assert.ErrorIs(t, err, portfolio.ErrObjectExists)

	meta, err := backend.Stat(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), meta.Size)
	assert.Equal(t, "max-age=3600", meta.CacheControl)

	url, err := backend.PresignedURL(ctx, key)
	require.NoError(t, err)
	assert.Contains(t, url, "X-Amz-Algorithm")

	reader, err := backend.Download(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	reader.Close()
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	objects, err := backend.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, objects, 1)

	require.NoError(t, backend.Remove(ctx, key))
	_, err = backend.Stat(ctx, key)
	assert.ErrorIs(t, err, portfolio.ErrObjectNotFound)
}
