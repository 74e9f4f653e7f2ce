package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// tempPrefix 是暂存文件的保留前缀，追加在最终文件名之前。
const tempPrefix = "."

// NewFileStore 以 basePath/namespace 为根目录构建磁盘存储。目录创建是幂等的，
// 在构造时完成一次。写入端的单写者约束由调用方（调度器的 in-flight 标记）保证，
// 这里不再引入每条目锁。
func NewFileStore(basePath, namespace string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}
	if namespace == "" {
		return nil, errors.New("namespace required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	root := filepath.Join(abs, namespace)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &fileStore{root: root}, nil
}

type fileStore struct {
	root string
}

func (s *fileStore) Exists(key string) bool {
	p, err := s.entryPath(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func (s *fileStore) Stat(key string) (Info, error) {
	p, err := s.entryPath(key)
	if err != nil {
		return Info{}, err
	}

	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, ErrNotFound
		}
		return Info{}, err
	}
	if info.IsDir() {
		return Info{}, ErrNotFound
	}

	return Info{
		Key:       key,
		Path:      p,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}

func (s *fileStore) OpenWrite(key string, temp bool) (io.WriteCloser, error) {
	p, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}
	if temp {
		p = tempPath(p)
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	return os.Create(p)
}

func (s *fileStore) OpenRead(key string) (io.ReadCloser, error) {
	p, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *fileStore) Commit(key string) error {
	p, err := s.entryPath(key)
	if err != nil {
		return err
	}
	return os.Rename(tempPath(p), p)
}

func (s *fileStore) DiscardTemp(key string) error {
	p, err := s.entryPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(tempPath(p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) TouchValidity(key string, extendBy time.Duration) error {
	p, err := s.entryPath(key)
	if err != nil {
		return err
	}

	if extendBy == 0 {
		now := time.Now()
		return os.Chtimes(p, now, now)
	}

	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	next := info.ModTime().Add(extendBy)
	return os.Chtimes(p, next, next)
}

func (s *fileStore) LocationHint(key string) string {
	p, err := s.entryPath(key)
	if err != nil {
		return ""
	}
	return p
}

// entryPath 将对象键映射到最终文件路径，并拒绝逃出存储根目录的键。
func (s *fileStore) entryPath(key string) (string, error) {
	if key == "" {
		return "", errors.New("object key required")
	}

	// 保留前缀属于暂存文件，键本身不允许使用，否则暂存副本会被当作对象读走。
	for _, part := range strings.Split(key, "/") {
		if part == ".." || strings.HasPrefix(part, tempPrefix) {
			return "", errors.New("invalid object key")
		}
	}

	rel := path.Clean("/" + key)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." {
		return "", errors.New("object key required")
	}

	p := filepath.Join(s.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", errors.New("invalid object key")
	}
	return p, nil
}

// tempPath 在同目录下用保留前缀推导暂存路径，保证 rename 不跨文件系统。
func tempPath(final string) string {
	dir, name := filepath.Split(final)
	return filepath.Join(dir, tempPrefix+name)
}
