package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// chunkSize 是流式写入的缓冲大小，也是体积上限判断的粒度。
const chunkSize = 8 * 1024

// maxNameAttempts 限制冲突后缀的尝试次数，避免病态目录下无限循环。
const maxNameAttempts = 10000

// NewStore 以 basePath 为根目录构建暂存存储，整个服务复用一份实例。
func NewStore(basePath string, maxBytes int64) (Store, error) {
	if basePath == "" {
		return nil, errors.New("scratch path required")
	}
	if maxBytes <= 0 {
		return nil, errors.New("max artifact size must be positive")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve scratch path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch path: %w", err)
	}

	return &fileStore{
		basePath: abs,
		maxBytes: maxBytes,
	}, nil
}

// fileStore 将每个工件保存为暂存目录下的单个文件。独占式创建
// (O_EXCL) 既充当冲突检测，也保证并发写入互不覆盖。
type fileStore struct {
	basePath string
	maxBytes int64
}

func (s *fileStore) Put(ctx context.Context, name string, body io.Reader) (*Artifact, error) {
	file, finalName, err := s.createExclusive(name)
	if err != nil {
		return nil, err
	}
	filePath := file.Name()

	written, err := s.copyChunks(ctx, file, body)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(filePath)
		return nil, err
	}

	return &Artifact{
		Name:      finalName,
		FilePath:  filePath,
		SizeBytes: written,
	}, nil
}

func (s *fileStore) Open(ctx context.Context, name string) (*ReadResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath, err := s.entryPath(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	artifact := Artifact{
		Name:      name,
		FilePath:  filePath,
		SizeBytes: info.Size(),
	}

	return &ReadResult{
		Artifact: artifact,
		Reader:   f,
	}, nil
}

func (s *fileStore) Remove(ctx context.Context, name string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	filePath, err := s.entryPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) Purge(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return 0, err
	}

	removed := 0
	var firstErr error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.basePath, entry.Name())); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}

// createExclusive 以独占模式创建目标文件；名称被占用时在扩展名前追加
// _1/_2 递增后缀重试，成功后返回实际使用的名称。
func (s *fileStore) createExclusive(name string) (*os.File, string, error) {
	stem, ext := splitName(name)
	candidate := name
	for attempt := 1; ; attempt++ {
		filePath, err := s.entryPath(candidate)
		if err != nil {
			return nil, "", err
		}
		f, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
		if attempt > maxNameAttempts {
			return nil, "", fmt.Errorf("exhausted name candidates for %s", name)
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, attempt, ext)
	}
}

// copyChunks 按固定块大小搬运正文，在写入前判断是否越过体积上限，
// 保证超限时磁盘上不会多出一个字节。
func (s *fileStore) copyChunks(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if copied+int64(n) > s.maxBytes {
				return copied, ErrSizeExceeded
			}
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}

func (s *fileStore) entryPath(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	filePath := filepath.Join(s.basePath, name)
	if filepath.Dir(filePath) != s.basePath {
		return "", ErrInvalidName
	}
	return filePath, nil
}
