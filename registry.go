package ipclass

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// Registry 管理保留地址块注册表，并据此生成分类器快照
type Registry struct {
	mu      sync.RWMutex
	storage BlockStorage
	logger  *log.Logger
}

// blockFile 是 TOML 地址块文件的结构
//
//	[[block]]
//	prefix = "100.64.0.0/10"
//	description = "Shared Address Space"
//	rfc = "RFC 6598"
type blockFile struct {
	Blocks []struct {
		Prefix      string `toml:"prefix"`
		Description string `toml:"description"`
		RFC         string `toml:"rfc"`
	} `toml:"block"`
}

// NewRegistry 初始化一个新的注册表
// storage 为 nil 时使用预置默认保留地址块的内存存储，可以传入零个或多个额外地址块
func NewRegistry(ctx context.Context, storage BlockStorage, initial ...Block) (*Registry, error) {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if storage == nil {
		storage = NewMemoryBlockStorage(DefaultReservedBlocks()...)
	}

	r := &Registry{
		storage: storage,
		logger:  log.New(io.Discard),
	}

	if _, err := r.AddBlocks(ctx, initial...); err != nil {
		return nil, fmt.Errorf("添加初始地址块失败: %w", err)
	}

	return r, nil
}

// WithLogger 设置日志记录器
func (r *Registry) WithLogger(logger *log.Logger) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if logger != nil {
		r.logger = logger
	}
	return r
}

func (r *Registry) getLogger() *log.Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}

func canonicalPrefix(prefix string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(strings.TrimSpace(prefix))
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w %s: %v", ErrInvalidPrefix, prefix, err)
	}
	return p.Masked(), nil
}

// AddBlock 添加一个保留地址块
func (r *Registry) AddBlock(ctx context.Context, prefix, description, rfc string) error {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := canonicalPrefix(prefix)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.storage.AddBlock(ctx, Block{Prefix: p, Description: description, RFC: rfc})
}

// AddBlocks 批量添加地址块，已存在的地址块会被跳过
// 出现其他错误时回滚本次已添加的地址块
func (r *Registry) AddBlocks(ctx context.Context, blocks ...Block) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.addBlocks(ctx, blocks)
}

// SeedDefaults 仅在注册表为空时写入默认保留地址块，返回写入的数量
// 持久化存储中被移除的默认地址块不会被重新写入
func (r *Registry) SeedDefaults(ctx context.Context) (int, error) {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	count, err := r.storage.BlockCount(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		r.logger.Debug("注册表非空，跳过默认地址块", "blocks", count)
		return 0, nil
	}

	return r.addBlocks(ctx, DefaultReservedBlocks())
}

// addBlocks 调用方需持有写锁
func (r *Registry) addBlocks(ctx context.Context, blocks []Block) (int, error) {
	added := []string{}
	rollback := func() {
		for _, prefix := range added {
			_ = r.storage.RemoveBlock(context.WithoutCancel(ctx), prefix)
		}
	}

	for _, b := range blocks {
		// 检查上下文是否已取消
		if err := ctx.Err(); err != nil {
			rollback()
			return 0, err
		}

		if !b.Prefix.IsValid() {
			rollback()
			return 0, fmt.Errorf("%w: %v", ErrInvalidPrefix, b.Prefix)
		}
		b.Prefix = b.Prefix.Masked()

		if err := r.storage.AddBlock(ctx, b); err != nil {
			if errors.Is(err, ErrBlockExists) {
				r.logger.Debug("跳过已存在的地址块", "prefix", b.Prefix)
				continue
			}
			rollback()
			return 0, err
		}
		added = append(added, b.Prefix.String())
	}

	return len(added), nil
}

// RemoveBlock 从注册表中移除一个地址块
func (r *Registry) RemoveBlock(ctx context.Context, prefix string) error {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := canonicalPrefix(prefix)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.storage.RemoveBlock(ctx, p.String())
}

// HasBlock 检查地址块是否在注册表中
func (r *Registry) HasBlock(ctx context.Context, prefix string) (bool, error) {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p, err := canonicalPrefix(prefix)
	if err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.storage.HasBlock(ctx, p.String())
}

// GetBlocks 获取注册表中的所有地址块
func (r *Registry) GetBlocks(ctx context.Context) ([]Block, error) {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.storage.GetBlocks(ctx)
}

// BlockCount 返回地址块数量
func (r *Registry) BlockCount(ctx context.Context) (int, error) {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.storage.BlockCount(ctx)
}

// LoadFile 从 TOML 文件加载地址块，返回新增的数量
func (r *Registry) LoadFile(ctx context.Context, path string) (int, error) {
	// 检查上下文是否已取消
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var f blockFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return 0, fmt.Errorf("解析地址块文件 %s 失败: %w", path, err)
	}

	blocks := make([]Block, 0, len(f.Blocks))
	for _, entry := range f.Blocks {
		p, err := canonicalPrefix(entry.Prefix)
		if err != nil {
			return 0, fmt.Errorf("地址块文件 %s: %w", path, err)
		}
		blocks = append(blocks, Block{Prefix: p, Description: entry.Description, RFC: entry.RFC})
	}

	added, err := r.AddBlocks(ctx, blocks...)
	if err != nil {
		return 0, err
	}

	r.getLogger().Debug("已加载地址块文件", "path", path, "total", len(blocks), "added", added)
	return added, nil
}

// Classifier 基于当前注册表内容生成一个只读分类器
// 之后对注册表的修改不会影响已生成的分类器
func (r *Registry) Classifier(ctx context.Context) (*Classifier, error) {
	blocks, err := r.GetBlocks(ctx)
	if err != nil {
		return nil, err
	}

	r.getLogger().Debug("生成分类器快照", "reserved_blocks", len(blocks))
	return NewClassifier(blocks...), nil
}

// String 返回注册表的字符串表示
func (r *Registry) String(ctx context.Context) (string, error) {
	var sb strings.Builder

	blocks, err := r.GetBlocks(ctx)
	if err != nil {
		return "", err
	}

	sb.WriteString("保留地址块注册表\n")
	if len(blocks) == 0 {
		sb.WriteString("  无\n")
	} else {
		for _, b := range blocks {
			sb.WriteString(fmt.Sprintf("  %-20s %-30s %s\n", b.Prefix, b.Description, b.RFC))
		}
	}

	sb.WriteString(fmt.Sprintf("\n地址块数量: %d\n", len(blocks)))

	sb.WriteString("\n文档地址块:\n")
	for _, p := range DocumentationRanges() {
		sb.WriteString(fmt.Sprintf("  %s\n", p))
	}

	return sb.String(), nil
}
