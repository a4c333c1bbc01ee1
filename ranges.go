package ipclass

import (
	"net/netip"

	"github.com/gaissmai/bart"
)

// Block 描述一个特殊用途地址块
type Block struct {
	Prefix      netip.Prefix // 规范化后的前缀
	Description string       // 地址块描述
	RFC         string       // 定义该地址块的 RFC
}

// String 返回前缀的字符串表示
func (b Block) String() string {
	return b.Prefix.String()
}

// IsZero 判断是否为空块
func (b Block) IsZero() bool {
	return !b.Prefix.IsValid()
}

func block(prefix, description, rfc string) Block {
	return Block{
		Prefix:      netip.MustParsePrefix(prefix).Masked(),
		Description: description,
		RFC:         rfc,
	}
}

// rangeTable 是只读的前缀查找表，构建后不再修改
type rangeTable struct {
	table  *bart.Table[Block]
	blocks []Block
}

func newRangeTable(blocks []Block) *rangeTable {
	t := &rangeTable{
		table:  new(bart.Table[Block]),
		blocks: make([]Block, 0, len(blocks)),
	}
	for _, b := range blocks {
		t.table.Insert(b.Prefix, b)
		t.blocks = append(t.blocks, b)
	}
	return t
}

// lookup 返回包含 addr 的最长前缀块
func (t *rangeTable) lookup(addr netip.Addr) (Block, bool) {
	if t == nil {
		return Block{}, false
	}
	return t.table.Lookup(addr)
}

func (t *rangeTable) contains(addr netip.Addr) bool {
	_, ok := t.lookup(addr)
	return ok
}

// 固定分类的地址块，包初始化时构建一次
var (
	loopbackBlocks = []Block{
		block("127.0.0.0/8", "Loopback", "RFC 1122"),
		block("::1/128", "Loopback Address", "RFC 4291"),
	}

	unspecifiedBlocks = []Block{
		block("0.0.0.0/32", "This host on this network", "RFC 1122"),
		block("::/128", "Unspecified Address", "RFC 4291"),
	}

	linkLocalBlocks = []Block{
		block("169.254.0.0/16", "Link Local", "RFC 3927"),
		block("fe80::/10", "Link-Local Unicast", "RFC 4291"),
	}

	privateBlocks = []Block{
		block("10.0.0.0/8", "Private-Use", "RFC 1918"),
		block("172.16.0.0/12", "Private-Use", "RFC 1918"),
		block("192.168.0.0/16", "Private-Use", "RFC 1918"),
		block("fc00::/7", "Unique-Local", "RFC 4193"),
	}

	multicastBlocks = []Block{
		block("224.0.0.0/4", "Multicast", "RFC 5771"),
		block("ff00::/8", "Multicast", "RFC 4291"),
	}

	documentationBlocks = []Block{
		block("192.0.2.0/24", "Documentation (TEST-NET-1)", "RFC 5737"),
		block("198.51.100.0/24", "Documentation (TEST-NET-2)", "RFC 5737"),
		block("203.0.113.0/24", "Documentation (TEST-NET-3)", "RFC 5737"),
		block("2001:db8::/32", "Documentation", "RFC 3849"),
	}
)

var (
	loopbackTable      = newRangeTable(loopbackBlocks)
	unspecifiedTable   = newRangeTable(unspecifiedBlocks)
	linkLocalTable     = newRangeTable(linkLocalBlocks)
	privateTable       = newRangeTable(privateBlocks)
	multicastTable     = newRangeTable(multicastBlocks)
	documentationTable = newRangeTable(documentationBlocks)
)

// DefaultReservedBlocks 返回默认的保留地址块
// 只包含前面各分类未覆盖的 IANA 特殊用途地址块
func DefaultReservedBlocks() []Block {
	return []Block{
		// IPv4
		block("0.0.0.0/8", "This network", "RFC 791"),
		block("100.64.0.0/10", "Shared Address Space", "RFC 6598"),
		block("192.0.0.0/24", "IETF Protocol Assignments", "RFC 6890"),
		block("198.18.0.0/15", "Benchmarking", "RFC 2544"),
		block("240.0.0.0/4", "Reserved for future use", "RFC 1112"),
		// IPv6
		block("::/8", "Reserved by IETF", "RFC 4291"),
		block("100::/8", "Reserved by IETF", "RFC 4291"),
		block("200::/7", "Reserved by IETF", "RFC 4048"),
		block("400::/6", "Reserved by IETF", "RFC 4291"),
		block("800::/5", "Reserved by IETF", "RFC 4291"),
		block("1000::/4", "Reserved by IETF", "RFC 4291"),
		block("2001::/23", "IETF Protocol Assignments", "RFC 2928"),
		block("4000::/3", "Reserved by IETF", "RFC 4291"),
		block("6000::/3", "Reserved by IETF", "RFC 4291"),
		block("8000::/3", "Reserved by IETF", "RFC 4291"),
		block("a000::/3", "Reserved by IETF", "RFC 4291"),
		block("c000::/3", "Reserved by IETF", "RFC 4291"),
		block("e000::/4", "Reserved by IETF", "RFC 4291"),
		block("f000::/5", "Reserved by IETF", "RFC 4291"),
		block("f800::/6", "Reserved by IETF", "RFC 4291"),
		block("fe00::/9", "Reserved by IETF", "RFC 4291"),
		block("fec0::/10", "Site-Local (deprecated)", "RFC 3879"),
	}
}

// DocumentationRanges 返回文档保留地址块的副本
func DocumentationRanges() []netip.Prefix {
	out := make([]netip.Prefix, len(documentationBlocks))
	for i, b := range documentationBlocks {
		out[i] = b.Prefix
	}
	return out
}
