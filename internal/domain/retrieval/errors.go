package retrieval

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateFilename 文件名已注册
	ErrDuplicateFilename = errors.New("filename already registered")

	// ErrDuplicateID chunk id 已存在
	ErrDuplicateID = errors.New("chunk id already exists")

	// ErrDimensionMismatch 向量维度与索引不一致
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNotFound 文档、chunk 或语言索引不存在
	ErrNotFound = errors.New("not found")

	// ErrEmptyEmbedding chunk 缺少向量
	ErrEmptyEmbedding = errors.New("empty embedding")
)

// DimensionMismatchError 携带期望维度与实际维度
type DimensionMismatchError struct {
	Language string
	Want     int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: index %q expects %d, got %d", ErrDimensionMismatch, e.Language, e.Want, e.Got)
}

// Is 使 errors.Is(err, ErrDimensionMismatch) 成立
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
