// Package fsx 负责状态目录里的 JSON 文件：原子写入与容错读取。
package fsx

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// 测试通过替换它来模拟 rename 失败。
var renameFunc = os.Rename

// WriteJSON 把 v 序列化后原子写入 path：同目录临时文件写完、Sync，再 rename 覆盖。
// 父目录不存在时自动创建；失败时不留下临时文件。
func WriteJSON(path string, v any) error {
	dir, name := filepath.Split(filepath.Clean(path))
	if name == "" || name == "." || name == ".." || strings.TrimSpace(dir) == "" {
		return fmt.Errorf("非法状态文件路径：%q", path)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化 %q 失败：%w", name, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(b); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := renameFunc(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("写入 %q 失败：%w", name, err)
	}
	committed = true
	return nil
}

// ReadJSON 读取 path 并解码到 v。文件不存在返回 (false, nil)。
func ReadJSON(path string, v any) (bool, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return true, fmt.Errorf("%q 无法解析：%w", path, err)
	}
	return true, nil
}
