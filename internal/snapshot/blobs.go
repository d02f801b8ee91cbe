package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// BlobStore is a key-value store of opaque values. Get reports false when
// the key has never been written.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
}

// MemoryBlobs keeps blobs in process memory. Nothing survives a restart.
type MemoryBlobs struct {
	c *cache.Cache
}

// NewMemoryBlobs creates an empty in-memory blob store.
func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{c: cache.New(cache.NoExpiration, 0)}
}

func (m *MemoryBlobs) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	data := v.([]byte)
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (m *MemoryBlobs) Put(_ context.Context, key string, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)
	m.c.Set(key, stored, cache.NoExpiration)
	return nil
}

// FileBlobs stores each key as one file under Dir. Writes go to a temp file
// that is renamed over the target, so readers see the old or the new blob.
type FileBlobs struct {
	Dir string
}

// NewFileBlobs creates the directory if needed.
func NewFileBlobs(dir string) (*FileBlobs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot dir %s: %w", dir, err)
	}
	return &FileBlobs{Dir: dir}, nil
}

func (f *FileBlobs) path(key string) string {
	name := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(key)
	return filepath.Join(f.Dir, name+".blob")
}

func (f *FileBlobs) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return data, true, nil
}

func (f *FileBlobs) Put(_ context.Context, key string, data []byte) error {
	target := f.path(key)
	tmp, err := os.CreateTemp(f.Dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for blob %s: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close blob %s: %w", key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace blob %s: %w", key, err)
	}
	return nil
}

// RedisBlobs stores blobs as plain redis string values.
type RedisBlobs struct {
	client redis.Cmdable
}

// NewRedisBlobs wraps an existing client.
func NewRedisBlobs(client redis.Cmdable) *RedisBlobs {
	return &RedisBlobs{client: client}
}

func (r *RedisBlobs) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

func (r *RedisBlobs) Put(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
