package cache

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kaiL163/nekostream/internal/infra/fsx"
)

const snapshotVersion = 1

type snapshotFile[V any] struct {
	Version int                 `json:"version"`
	Name    string              `json:"name"`
	SavedAt time.Time           `json:"saved_at"`
	Entries map[string]Entry[V] `json:"entries"`
}

// SnapshotPath 返回缓存快照在 dir 下的路径：<dir>/<name>.json。
func SnapshotPath[V any](c *TTL[V], dir string) string {
	return filepath.Join(filepath.Clean(dir), c.name+".json")
}

// WriteSnapshot 把缓存全部条目（含过期条目）原子写入 <dir>/<name>.json。
// 缓存为空时不写文件，已有快照保持不变。
func WriteSnapshot[V any](c *TTL[V], dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("state_dir 不能为空")
	}
	if c.Len() == 0 {
		return nil
	}
	return fsx.WriteJSON(SnapshotPath(c, dir), snapshotFile[V]{
		Version: snapshotVersion,
		Name:    c.name,
		SavedAt: c.opts.Now().UTC(),
		Entries: c.Entries(),
	})
}

// ReadSnapshot 读取快照并 Restore 到缓存，返回恢复的条目数。
// 文件不存在不算错误。
func ReadSnapshot[V any](c *TTL[V], dir string) (int, error) {
	var sf snapshotFile[V]
	ok, err := fsx.ReadJSON(SnapshotPath(c, dir), &sf)
	if err != nil || !ok {
		return 0, err
	}
	if sf.Version != snapshotVersion {
		return 0, fmt.Errorf("快照 %q 版本不支持：%d", SnapshotPath(c, dir), sf.Version)
	}
	if sf.Name != c.name {
		return 0, fmt.Errorf("快照 %q 属于缓存 %q，而不是 %q", SnapshotPath(c, dir), sf.Name, c.name)
	}
	return c.Restore(sf.Entries), nil
}

var cacheNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)

func cleanName(n string) (string, error) {
	if n == "" {
		return "", fmt.Errorf("cache 名称不能为空")
	}
	// 名称会作为快照文件名使用，只允许最小字符集，避免路径穿越。
	if !cacheNameRE.MatchString(n) {
		return "", fmt.Errorf("非法 cache 名称：%q", n)
	}
	return n, nil
}
