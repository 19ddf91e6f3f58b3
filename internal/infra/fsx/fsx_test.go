package fsx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type state struct {
	N int `json:"n"`
}

func TestWriteJSON_ReplaceAndNoTempLeft(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "pool.json")

	if err := WriteJSON(path, state{N: 1}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := WriteJSON(path, state{N: 2}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	var got state
	ok, err := ReadJSON(path, &got)
	if err != nil || !ok {
		t.Fatalf("读取失败：ok=%v err=%v", ok, err)
	}
	if got.N != 2 {
		t.Fatalf("期望覆盖为 2，实际 %d", got.N)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".pool.json.tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}

func TestWriteJSON_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	if err := WriteJSON(filepath.Join(dir, "pool.json"), state{N: 1}); err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("不应留下任何文件，实际 %d 个", len(entries))
	}
}

func TestReadJSON_MissingAndBroken(t *testing.T) {
	dir := t.TempDir()

	var s state
	ok, err := ReadJSON(filepath.Join(dir, "nope.json"), &s)
	if ok || err != nil {
		t.Fatalf("文件不存在应返回 (false, nil)，实际 (%v, %v)", ok, err)
	}

	broken := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(broken, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadJSON(broken, &s); err == nil {
		t.Fatalf("期望解析错误")
	}
}
