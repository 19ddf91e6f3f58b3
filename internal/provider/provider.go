package provider

import (
	"context"

	"github.com/kaiL163/nekostream/internal/domain"
)

// VideoSourceProvider 把“站点差异”限制在实现内部；核心流程只依赖统一的 VideoResult。
//
// 约束：
// - VideoSources 不返回 error：上游不可用时返回 Found=false 的空结果
// - 不做缓存、不做重试（由镜像执行器与上层统一处理）
type VideoSourceProvider interface {
	Name() string
	VideoSources(ctx context.Context, ref domain.TitleRef) domain.VideoResult
}
