package chat

import "errors"

var (
	// ErrEmptyQuery 查询为空
	ErrEmptyQuery = errors.New("query is required")

	// ErrInvalidFilename 上传文件名为空或非法
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrFileTooLarge 超过上传大小上限
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoChunks 文档存在但没有可用的 chunk
	ErrNoChunks = errors.New("document has no chunks")
)
