package ipclass

import (
	"fmt"
	"strings"
)

// Category 表示一个地址的用途分类
// 声明顺序只用于文档说明，分类器的判定顺序由 Classify 中的分支显式决定
type Category uint8

const (
	Invalid       Category = iota // INVALID
	Loopback                      // LOOPBACK
	Unspecified                   // UNSPECIFIED
	LinkLocal                     // LINK_LOCAL
	Private                       // PRIVATE
	Multicast                     // MULTICAST
	Documentation                 // DOCUMENTATION
	Reserved                      // RESERVED
	Public                        // PUBLIC
)

var categoryNames = [...]string{
	Invalid:       "INVALID",
	Loopback:      "LOOPBACK",
	Unspecified:   "UNSPECIFIED",
	LinkLocal:     "LINK_LOCAL",
	Private:       "PRIVATE",
	Multicast:     "MULTICAST",
	Documentation: "DOCUMENTATION",
	Reserved:      "RESERVED",
	Public:        "PUBLIC",
}

// Categories 返回全部分类
func Categories() []Category {
	out := make([]Category, len(categoryNames))
	for i := range categoryNames {
		out[i] = Category(i)
	}
	return out
}

// String 返回分类名称
func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// ParseCategory 按名称解析分类，不区分大小写
func ParseCategory(name string) (Category, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return Invalid, fmt.Errorf("未知的分类: %q", name)
}

// MarshalText 实现 encoding.TextMarshaler
func (c Category) MarshalText() ([]byte, error) {
	if int(c) >= len(categoryNames) {
		return nil, fmt.Errorf("未知的分类: %d", uint8(c))
	}
	return []byte(categoryNames[c]), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
