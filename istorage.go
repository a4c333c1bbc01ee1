package ipclass

import (
	"context"
	"errors"
)

var (
	// ErrBlockExists 地址块已存在
	ErrBlockExists = errors.New("地址块已存在")
	// ErrBlockNotFound 地址块不存在
	ErrBlockNotFound = errors.New("地址块不存在")
	// ErrInvalidPrefix 前缀格式无效
	ErrInvalidPrefix = errors.New("无效的前缀格式")
	// ErrUnsupportedDriver 不支持的数据库驱动
	ErrUnsupportedDriver = errors.New("不支持的数据库驱动")
)

// BlockStorage 是保留地址块注册表存储的接口
type BlockStorage interface {
	// AddBlock 添加一个地址块
	AddBlock(ctx context.Context, b Block) error

	// RemoveBlock 按前缀移除一个地址块
	RemoveBlock(ctx context.Context, prefix string) error

	// HasBlock 检查地址块是否存在
	HasBlock(ctx context.Context, prefix string) (bool, error)

	// GetBlocks 获取所有地址块，按前缀字符串排序
	GetBlocks(ctx context.Context) ([]Block, error)

	// BlockCount 获取地址块数量
	BlockCount(ctx context.Context) (int, error)
}
