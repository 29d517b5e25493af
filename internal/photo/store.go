package photo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// maxSuffix 同一秒内允许的最多快照数量
const maxSuffix = 1000

// photoFile 已创建的快照文件
type photoFile interface {
	Write(p []byte) (int, error)
	Close() error
}

// DirStore 将快照保存为目录中的独立图片文件
type DirStore struct {
	dir    string
	logger *zap.Logger
	create func(path string) (photoFile, error)
}

// createExclusive 仅在文件不存在时创建
func createExclusive(path string) (photoFile, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

// NewDirStore 创建快照目录（不存在时自动创建）
func NewDirStore(dir string, logger *zap.Logger) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo dir %s: %w", dir, err)
	}
	return &DirStore{dir: dir, logger: logger, create: createExclusive}, nil
}

// Dir 快照目录
func (s *DirStore) Dir() string {
	return s.dir
}

// Save 保存快照，文件名由抓拍时间决定：alert_photo_<unix>.jpg
// 同名文件已存在时追加 _1, _2 ... 后缀，不会覆盖
func (s *DirStore) Save(frame []byte, capturedAt time.Time) (string, error) {
	if len(frame) == 0 {
		return "", errors.New("empty frame")
	}

	base := fmt.Sprintf("alert_photo_%d", capturedAt.Unix())
	for n := 0; n < maxSuffix; n++ {
		name := base + ".jpg"
		if n > 0 {
			name = fmt.Sprintf("%s_%d.jpg", base, n)
		}
		path := filepath.Join(s.dir, name)

		f, err := s.create(path)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create photo %s: %w", path, err)
		}

		if _, err := f.Write(frame); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("failed to write photo %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("failed to close photo %s: %w", path, err)
		}

		s.logger.Info("Photo saved", zap.String("photo_path", path))
		return path, nil
	}

	return "", fmt.Errorf("too many photos for %s", base)
}
