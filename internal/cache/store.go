package cache

import (
	"context"
	"errors"
	"io"
)

// Store 负责管理暂存目录的读写。磁盘布局为单层：
//
//	<ScratchPath>/<name>    # 工件正文
//
// 每个工件仅由正文文件组成，一经写入不再修改，Size 由文件系统提供。
type Store interface {
	// Put 将 body 流式写入以 name 命名的新工件。名称冲突时自动追加
	// _1/_2 等后缀（位于扩展名之前），返回实际落盘的工件描述。
	// 写入超过体积上限返回 ErrSizeExceeded；任何失败都会清理残留文件。
	Put(ctx context.Context, name string, body io.Reader) (*Artifact, error)

	// Open 返回一个可流式读取的工件。若不存在则返回 ErrNotFound。
	Open(ctx context.Context, name string) (*ReadResult, error)

	// Remove 删除工件正文，文件不存在不视为错误。
	Remove(ctx context.Context, name string) error

	// Purge 清空暂存目录中的所有工件文件，返回删除数量。
	Purge(ctx context.Context) (int, error)
}

// Artifact 表示一个已落盘的工件，名称即身份。
type Artifact struct {
	Name      string `json:"name"`
	FilePath  string `json:"file_path"`
	SizeBytes int64  `json:"size_bytes"`
}

// ReadResult 组合 Artifact 与正文 Reader，便于处理层直接流式返回。
type ReadResult struct {
	Artifact Artifact
	Reader   io.ReadSeekCloser
}

// ErrNotFound 表示工件不存在。
var ErrNotFound = errors.New("artifact not found")

// ErrInvalidName 表示工件名称非法（路径分隔符、.. 等）。
var ErrInvalidName = errors.New("invalid artifact name")

// ErrSizeExceeded 表示写入体积超过配置上限。
var ErrSizeExceeded = errors.New("artifact size limit exceeded")
