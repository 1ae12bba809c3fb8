package s3io_test

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/stretchr/testify/require"
	"testing"

	"github.com/studio1767/pgdelta/internal/s3io"
)

func TestExists(t *testing.T) {
	// basic setup to get the client
	profile := os.Getenv("PGDELTA_TEST_PROFILE")
	if profile == "" {
		t.Skip("missing environment variable PGDELTA_TEST_PROFILE")
	}

	bucket := os.Getenv("PGDELTA_TEST_BUCKET")
	require.NotEmpty(t, bucket, "missing environment variable PGDELTA_TEST_BUCKET")

	client, err := s3io.NewClient(profile, bucket, "default")
	require.NoError(t, err)

	// generate a key to test with
	now := time.Now()
	key := fmt.Sprintf("test-%s", now.Format("20060102150405"))

	exists, err := client.Exists(key)
	require.NoError(t, err)
	require.Equal(t, exists, false)
}

func TestDeleteMissingKey(t *testing.T) {
	profile := os.Getenv("PGDELTA_TEST_PROFILE")
	if profile == "" {
		t.Skip("missing environment variable PGDELTA_TEST_PROFILE")
	}

	bucket := os.Getenv("PGDELTA_TEST_BUCKET")
	require.NotEmpty(t, bucket, "missing environment variable PGDELTA_TEST_BUCKET")

	client, err := s3io.NewClient(profile, bucket, "default")
	require.NoError(t, err)

	now := time.Now()
	key := fmt.Sprintf("test-delete-%s", now.Format("20060102150405"))

	err = client.DeleteKey(key)
	require.Error(t, err)

	var nosuch *s3io.ErrNoSuchObject
	require.True(t, errors.As(err, &nosuch))
	require.Equal(t, key, nosuch.Key)
}
