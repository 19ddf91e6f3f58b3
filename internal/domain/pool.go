package domain

import (
	"fmt"
	"strings"
)

// PoolKind 是轮换池的种类。
type PoolKind string

const (
	PoolRandom  PoolKind = "random"
	PoolPopular PoolKind = "popular"
)

func ParsePoolKind(s string) (PoolKind, error) {
	switch k := PoolKind(strings.ToLower(strings.TrimSpace(s))); k {
	case PoolRandom, PoolPopular:
		return k, nil
	case "":
		return PoolRandom, nil
	default:
		return "", fmt.Errorf("未知 pool 类型：%q（只能是 random 或 popular）", s)
	}
}

// CatalogFilter 对应目录检索的可选过滤条件。零值字段表示不过滤。
type CatalogFilter struct {
	Limit  int    `json:"limit"`
	Page   int    `json:"page"`
	Search string `json:"search"`
	Status string `json:"status"`
	Kind   string `json:"kind"`
	Order  string `json:"order"`
	Genre  string `json:"genre"`
	Season string `json:"season"`
	// Strict=true 时剔除“连载中但 0 集已播出”的条目。
	Strict bool `json:"strict"`
}
