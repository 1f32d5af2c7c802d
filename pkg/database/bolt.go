// Package database 负责初始化各类存储连接。
package database

import (
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

// OpenBolt 打开本地 bbolt 文件，目录不存在时自动创建。
func OpenBolt(path string) (*bbolt.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create bolt dir: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	return db, nil
}
