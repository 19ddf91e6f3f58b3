package provider

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// 上游 JSON 的字段类型并不稳定（同一个字段有时是数字、有时是字符串、有时是 null）。
// 下面的类型在 UnmarshalJSON 中永不返回错误：无法识别的值视为缺失（Valid=false）。

// FlexInt 接受 123 / "123" / 12.0 / null。
type FlexInt struct {
	V     int
	Valid bool
}

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	*f = FlexInt{}
	s, ok := scalarText(b)
	if !ok {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		f.V, f.Valid = int(n), true
		return nil
	}
	if x, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(x) && !math.IsInf(x, 0) {
		f.V, f.Valid = int(x), true
	}
	return nil
}

// Ptr 在 Valid 时返回值指针，否则 nil。
func (f FlexInt) Ptr() *int {
	if !f.Valid {
		return nil
	}
	v := f.V
	return &v
}

// FlexFloat 接受 8.1 / "8.1" / null。
type FlexFloat struct {
	V     float64
	Valid bool
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	*f = FlexFloat{}
	s, ok := scalarText(b)
	if !ok {
		return nil
	}
	if x, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(x) && !math.IsInf(x, 0) {
		f.V, f.Valid = x, true
	}
	return nil
}

func (f FlexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.V
	return &v
}

// FlexString 接受 "abc" / 123（保留数字字面量）/ null；对象与数组视为缺失。
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	*f = ""
	s, ok := scalarText(b)
	if !ok {
		return nil
	}
	if s == "true" || s == "false" {
		return nil
	}
	*f = FlexString(s)
	return nil
}

func (f FlexString) String() string { return string(f) }

// scalarText 提取 JSON 标量的文本形式（字符串去引号并 trim）。
func scalarText(b []byte) (string, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return "", false
	}
	switch b[0] {
	case '{', '[':
		return "", false
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	default:
		return string(b), true
	}
}

// DecodeItems 逐条解码 JSON 数组；单条失败只跳过该条，不影响其余条目。
func DecodeItems[T any](raw []json.RawMessage) (items []T, skipped int) {
	items = make([]T, 0, len(raw))
	for _, r := range raw {
		var it T
		if err := json.Unmarshal(r, &it); err != nil {
			skipped++
			continue
		}
		items = append(items, it)
	}
	return items, skipped
}

// FlexStrings 接受 ["a","b"] / "a" / null；数组中的非字符串元素被忽略。
type FlexStrings []string

func (f *FlexStrings) UnmarshalJSON(b []byte) error {
	*f = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	if b[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil
		}
		for _, r := range raw {
			var s string
			if json.Unmarshal(r, &s) == nil && strings.TrimSpace(s) != "" {
				*f = append(*f, strings.TrimSpace(s))
			}
		}
		return nil
	}
	if s, ok := scalarText(b); ok && b[0] == '"' {
		*f = FlexStrings{s}
	}
	return nil
}
