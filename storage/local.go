package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rohan/securevault-backend/vault"
)

// LocalStore writes ciphertext blobs to a directory on disk. Used for
// development; production deployments point at S3.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) path(key string) string {
	// Blob keys are engine-minted, but flatten anyway so a key can
	// never escape the root.
	return filepath.Join(s.root, filepath.Base(key))
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("%w: create blob dir: %v", vault.ErrStorageUnavailable, err)
	}
	if err := os.WriteFile(s.path(key), data, 0o600); err != nil {
		return fmt.Errorf("%w: write blob %s: %v", vault.ErrStorageUnavailable, key, err)
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vault.ErrNotFound
		}
		return nil, fmt.Errorf("%w: read blob %s: %v", vault.ErrStorageUnavailable, key, err)
	}
	return data, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil {
		if os.IsNotExist(err) {
			return vault.ErrNotFound
		}
		return fmt.Errorf("%w: delete blob %s: %v", vault.ErrStorageUnavailable, key, err)
	}
	return nil
}
