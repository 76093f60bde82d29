package locations_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangrobe.dev/streamsource/storage/locations"
	"mangrobe.dev/streamsource/storage/objstore"
)

func TestReadLocalFile(t *testing.T) {
	tempDir := t.TempDir()
	testContent := []byte("test file content")
	filePath := filepath.Join(tempDir, "test-read-local.txt")
	err := os.WriteFile(filePath, testContent, 0o644)
	require.NoError(t, err, "prereq: writing test file should not return an error")

	content, err := locations.ReadFile(t.Context(), filePath, locations.S3Options{})
	assert.NoError(t, err, "reading existing file should not return an error")
	assert.Equal(t, testContent, content, "file content should match what was written")

	content, err = locations.ReadLocalFile(filepath.Join(tempDir, "nonexistent.txt"))
	assert.ErrorIs(t, err, locations.ErrNotFound, "reading non-existent file should return ErrNotFound")
	assert.Nil(t, content, "content should be nil for non-existent file")
}

func TestReadS3File(t *testing.T) {
	s3Service := objstore.NewMemoryS3Service()
	bucketName := "test-bucket"
	key := "test/file.txt"
	testContent := []byte("test s3 content")

	_, err := s3Service.PutObject(t.Context(), &s3.PutObjectInput{
		Bucket: &bucketName,
		Key:    &key,
		Body:   bytes.NewReader(testContent),
	})
	require.NoError(t, err, "putting test object should not return an error")

	content, err := locations.ReadS3File(t.Context(), s3Service, "s3://"+bucketName+"/"+key)
	assert.NoError(t, err, "reading existing S3 file should not return an error")
	assert.Equal(t, testContent, content, "S3 file content should match what was uploaded")

	_, err = locations.ReadS3File(t.Context(), s3Service, "s3://"+bucketName+"/test/nonexistent.txt")
	assert.ErrorIs(t, err, locations.ErrNotFound, "reading non-existent S3 file should return ErrNotFound")

	_, err = locations.ReadS3File(t.Context(), s3Service, "s3://"+bucketName)
	assert.Error(t, err, "a URI without a key is invalid")
}
