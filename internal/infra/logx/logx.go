// Package logx 构造进程级 hclog.Logger：stderr 输出，可选滚动日志文件。
package logx

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Name   string
	Level  string
	Format string // text|json

	// File 非空时额外写入滚动日志文件。
	File       string
	MaxSizeMB  int
	MaxBackups int

	// Output 默认 os.Stderr。
	Output io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New 返回 logger 与需要在退出时关闭的资源（未配置文件时为 no-op）。
func New(opts Options) (hclog.Logger, io.Closer) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	var closer io.Closer = nopCloser{}
	if strings.TrimSpace(opts.File) != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(out, lj)
		closer = lj
	}

	name := opts.Name
	if name == "" {
		name = "nekostream"
	}
	lvl := hclog.LevelFromString(opts.Level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	l := hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      lvl,
		Output:     out,
		JSONFormat: strings.EqualFold(opts.Format, "json"),
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	return l, closer
}
