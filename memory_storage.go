package ipclass

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryBlockStorage 是地址块注册表的内存实现
type MemoryBlockStorage struct {
	mu     sync.RWMutex
	blocks map[string]Block
}

// NewMemoryBlockStorage 创建一个新的内存存储，可传入初始地址块
func NewMemoryBlockStorage(initial ...Block) *MemoryBlockStorage {
	s := &MemoryBlockStorage{
		blocks: make(map[string]Block, len(initial)),
	}
	for _, b := range initial {
		b.Prefix = b.Prefix.Masked()
		s.blocks[b.Prefix.String()] = b
	}
	return s
}

// AddBlock 实现 BlockStorage 接口
func (s *MemoryBlockStorage) AddBlock(ctx context.Context, b Block) error {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return err
	}

	if !b.Prefix.IsValid() {
		return fmt.Errorf("%w: %v", ErrInvalidPrefix, b.Prefix)
	}

	// 与注册表的规范化前缀保持一致
	b.Prefix = b.Prefix.Masked()

	s.mu.Lock()
	defer s.mu.Unlock()

	key := b.Prefix.String()
	if _, exists := s.blocks[key]; exists {
		return fmt.Errorf("%w: %s", ErrBlockExists, key)
	}

	s.blocks[key] = b
	return nil
}

// RemoveBlock 实现 BlockStorage 接口
func (s *MemoryBlockStorage) RemoveBlock(ctx context.Context, prefix string) error {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blocks[prefix]; !exists {
		return fmt.Errorf("%w: %s", ErrBlockNotFound, prefix)
	}

	delete(s.blocks, prefix)
	return nil
}

// HasBlock 实现 BlockStorage 接口
func (s *MemoryBlockStorage) HasBlock(ctx context.Context, prefix string) (bool, error) {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.blocks[prefix]
	return exists, nil
}

// GetBlocks 实现 BlockStorage 接口
func (s *MemoryBlockStorage) GetBlocks(ctx context.Context) ([]Block, error) {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.blocks))
	for k := range s.blocks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Block, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.blocks[k])
	}
	return out, nil
}

// BlockCount 实现 BlockStorage 接口
func (s *MemoryBlockStorage) BlockCount(ctx context.Context) (int, error) {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.blocks), nil
}
