package supabase

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	storage "github.com/supabase-community/storage-go"
)

const listPageSize = 1000

// StorageClient is the Supabase Storage object store. Objects are written
// with upsert so re-saving a slot overwrites it.
type StorageClient struct {
	// storage-go keeps upload headers (content type, upsert) on the client
	// transport, so uploads get their own client and are serialized.
	uploads *storage.Client
	objects *storage.Client
	bucket  string
	mu      sync.Mutex
}

func NewStorageClient(supabaseURL, apiKey, bucket string) *StorageClient {
	endpoint := strings.TrimRight(supabaseURL, "/") + "/storage/v1"
	return &StorageClient{
		uploads: storage.NewClient(endpoint, apiKey, nil),
		objects: storage.NewClient(endpoint, apiKey, nil),
		bucket:  bucket,
	}
}

// Put uploads data at objectPath and returns its public URL.
func (s *StorageClient) Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	upsert := true

	s.mu.Lock()
	_, err := s.uploads.UploadFile(s.bucket, objectPath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	s.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectPath, err)
	}

	return s.PublicURL(objectPath), nil
}

func (s *StorageClient) PublicURL(objectPath string) string {
	return s.objects.GetPublicUrl(s.bucket, objectPath).SignedURL
}

// DeletePrefix removes every object directly under prefix.
func (s *StorageClient) DeletePrefix(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prefix = strings.TrimSuffix(prefix, "/")

	files, err := s.objects.ListFiles(s.bucket, prefix, storage.FileSearchOptions{
		Limit: listPageSize,
	})
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}
	if len(files) == 0 {
		return nil
	}

	paths := make([]string, len(files))
	for i, file := range files {
		paths[i] = path.Join(prefix, file.Name)
	}
	if _, err := s.objects.RemoveFile(s.bucket, paths); err != nil {
		return fmt.Errorf("failed to delete files: %w", err)
	}

	return nil
}
