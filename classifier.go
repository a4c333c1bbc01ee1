package ipclass

import (
	"net/netip"
)

// Classifier 按固定优先级对地址进行分类
// 构建后只读，可被任意数量的 goroutine 并发使用
type Classifier struct {
	reserved *rangeTable
}

// Result 是一次分类的详细结果
type Result struct {
	Input    string
	Category Category
	Address  ParsedAddress // 仅当 Category 不是 Invalid 时有效
	Block    Block         // 决定分类的地址块，Public 和 Invalid 时为空
}

var defaultClassifier = NewClassifier(DefaultReservedBlocks()...)

// NewClassifier 使用给定的保留地址块创建分类器
func NewClassifier(reserved ...Block) *Classifier {
	return &Classifier{reserved: newRangeTable(reserved)}
}

// Default 返回使用默认保留地址块的分类器
func Default() *Classifier {
	return defaultClassifier
}

// Classify 使用默认分类器对地址分类
func Classify(raw string) Category {
	return defaultClassifier.Classify(raw)
}

// Explain 使用默认分类器返回详细结果
func Explain(raw string) Result {
	return defaultClassifier.Explain(raw)
}

// Parse 解析地址并计算派生属性
func (c *Classifier) Parse(raw string) (ParsedAddress, bool) {
	addr, ok := parseAddr(raw)
	if !ok {
		return ParsedAddress{}, false
	}
	return newParsedAddress(addr, c.reserved), true
}

// Classify 返回地址的分类，无法解析的输入返回 Invalid
func (c *Classifier) Classify(raw string) Category {
	p, ok := c.Parse(raw)
	if !ok {
		return Invalid
	}
	return categorize(p)
}

// categorize 按优先级依次判定，命中即返回
// 调整判定顺序会改变结果
func categorize(p ParsedAddress) Category {
	switch {
	case p.IsLoopback:
		return Loopback
	case p.IsUnspecified:
		return Unspecified
	case p.IsLinkLocal:
		return LinkLocal
	case p.IsPrivate:
		return Private
	case p.IsMulticast:
		return Multicast
	case p.IsDocumentation:
		return Documentation
	case p.IsReserved:
		return Reserved
	default:
		return Public
	}
}

// Explain 返回分类结果以及命中的地址块
func (c *Classifier) Explain(raw string) Result {
	res := Result{Input: raw, Category: Invalid}

	p, ok := c.Parse(raw)
	if !ok {
		return res
	}

	res.Address = p
	res.Category = categorize(p)
	res.Block, _ = c.tableFor(res.Category).lookup(p.Addr.WithZone(""))

	return res
}

// ReservedBlocks 返回分类器使用的保留地址块
func (c *Classifier) ReservedBlocks() []Block {
	out := make([]Block, len(c.reserved.blocks))
	copy(out, c.reserved.blocks)
	return out
}

// IsReserved 判断地址是否落在保留地址块中，不考虑其他分类
func (c *Classifier) IsReserved(addr netip.Addr) bool {
	return c.reserved.contains(addr.WithZone(""))
}

func (c *Classifier) tableFor(cat Category) *rangeTable {
	switch cat {
	case Loopback:
		return loopbackTable
	case Unspecified:
		return unspecifiedTable
	case LinkLocal:
		return linkLocalTable
	case Private:
		return privateTable
	case Multicast:
		return multicastTable
	case Documentation:
		return documentationTable
	case Reserved:
		return c.reserved
	default:
		return nil
	}
}
