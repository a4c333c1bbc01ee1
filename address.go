package ipclass

import (
	"net/netip"
)

// ParsedAddress 是一次分类过程中解析出的地址及其派生属性
type ParsedAddress struct {
	Addr    netip.Addr
	Version int // 4 或 6

	IsLoopback      bool
	IsUnspecified   bool
	IsLinkLocal     bool
	IsPrivate       bool
	IsMulticast     bool
	IsDocumentation bool
	IsReserved      bool
}

// parseAddr 将字符串解析为地址
// 解析失败统一返回 false，不向调用方暴露底层错误
func parseAddr(raw string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(raw)
	if err != nil || !addr.IsValid() {
		return netip.Addr{}, false
	}
	return addr, true
}

// newParsedAddress 计算地址的派生属性，reserved 为保留地址块查找表
func newParsedAddress(addr netip.Addr, reserved *rangeTable) ParsedAddress {
	// 区域标识不参与前缀匹配
	bare := addr.WithZone("")

	p := ParsedAddress{
		Addr:    addr,
		Version: 6,
	}
	if addr.Is4() {
		p.Version = 4
	}

	p.IsLoopback = loopbackTable.contains(bare)
	p.IsUnspecified = unspecifiedTable.contains(bare)
	p.IsLinkLocal = linkLocalTable.contains(bare)
	p.IsPrivate = privateTable.contains(bare)
	p.IsMulticast = multicastTable.contains(bare)
	p.IsDocumentation = documentationTable.contains(bare)
	p.IsReserved = reserved.contains(bare)

	return p
}

// Is4 判断是否为 IPv4 地址
func (p ParsedAddress) Is4() bool {
	return p.Version == 4
}

// Is6 判断是否为 IPv6 地址
func (p ParsedAddress) Is6() bool {
	return p.Version == 6
}
