package ipclass

import (
	"encoding/json"
	"testing"
)

// TestCategory_String 测试分类名称
func TestCategory_String(t *testing.T) {
	want := []string{
		"INVALID", "LOOPBACK", "UNSPECIFIED", "LINK_LOCAL", "PRIVATE",
		"MULTICAST", "DOCUMENTATION", "RESERVED", "PUBLIC",
	}

	cats := Categories()
	if len(cats) != len(want) {
		t.Fatalf("预期 %d 个分类, 得到 %d", len(want), len(cats))
	}
	for i, c := range cats {
		if c.String() != want[i] {
			t.Errorf("分类 %d 预期 %s, 得到 %s", i, want[i], c)
		}
	}

	if got := Category(200).String(); got != "Category(200)" {
		t.Errorf("未知分类的名称错误: %s", got)
	}
}

// TestParseCategory 测试按名称解析分类
func TestParseCategory(t *testing.T) {
	for _, c := range Categories() {
		got, err := ParseCategory(c.String())
		if err != nil || got != c {
			t.Errorf("ParseCategory(%q) = %s, %v", c.String(), got, err)
		}
	}

	got, err := ParseCategory(" link_local ")
	if err != nil || got != LinkLocal {
		t.Errorf("ParseCategory 应忽略大小写和空白, 得到 %s, %v", got, err)
	}

	if _, err := ParseCategory("bogon"); err == nil {
		t.Error("ParseCategory 应该失败")
	}
}

// TestCategory_JSON 测试文本编码
func TestCategory_JSON(t *testing.T) {
	type payload struct {
		Category Category `json:"category"`
	}

	data, err := json.Marshal(payload{Category: Documentation})
	if err != nil {
		t.Fatalf("Marshal 失败: %v", err)
	}
	if string(data) != `{"category":"DOCUMENTATION"}` {
		t.Errorf("编码结果错误: %s", data)
	}

	var p payload
	if err := json.Unmarshal([]byte(`{"category":"multicast"}`), &p); err != nil {
		t.Fatalf("Unmarshal 失败: %v", err)
	}
	if p.Category != Multicast {
		t.Errorf("预期 MULTICAST, 得到 %s", p.Category)
	}

	if _, err := Category(99).MarshalText(); err == nil {
		t.Error("未知分类编码应该失败")
	}
}
