package domain

// Title 是合并后的标准番剧元数据（一次解析的完整快照）。
//
// 约束：
// - Poster 非空时必须是绝对 URL（不会以 "/" 开头）
// - 数值字段缺失时为 nil，而不是 0（0 集与“未知”语义不同）
// - Genres 是去重后的名称列表，保持上游给出的顺序
type Title struct {
	ShikimoriID   string   `json:"shikimori_id"`
	KinopoiskID   string   `json:"kinopoisk_id,omitempty"`
	Title         string   `json:"title"`
	TitleOrig     string   `json:"title_orig"`
	Year          *int     `json:"year"`
	Kind          string   `json:"anime_kind"`
	Status        string   `json:"anime_status"`
	EpisodesTotal *int     `json:"episodes_total"`
	EpisodesAired *int     `json:"episodes_aired"`
	Poster        string   `json:"poster"`
	Description   string   `json:"description"`
	Genres        []string `json:"genres"`
	Rating        *float64 `json:"shikimori_rating"`
}

// Translation 是一条配音/字幕轨道。
type Translation struct {
	ID            string `json:"translation_id"`
	Title         string `json:"translation_title"`
	Type          string `json:"translation_type"`
	Link          string `json:"link"`
	EpisodesCount int    `json:"episodes_count"`
}

// TitleResult 是 resolveTitle 的对外结果。
// Found=false 时 Metadata 必须为 nil，Translations 为空切片（序列化为 []）。
type TitleResult struct {
	Found        bool          `json:"found"`
	Metadata     *Title        `json:"metadata"`
	Translations []Translation `json:"translations"`
}

// NotFound 返回“所有上游都失败”时的标准结果。
func NotFound() TitleResult {
	return TitleResult{Found: false, Metadata: nil, Translations: []Translation{}}
}

// TitleRef 是视频源 provider 检索所需的最小标识集合。
type TitleRef struct {
	ShikimoriID string
	Name        string // 原名（通常为罗马字）
	Russian     string
	Year        int // 0 表示未知
	Kind        string
}

// SearchResult 是按标题检索配音轨道的结果。
type SearchResult struct {
	Results     []Translation `json:"results"`
	KinopoiskID string        `json:"kinopoisk_id,omitempty"`
	ShikimoriID string        `json:"shikimori_id,omitempty"`
}

// IntPtr 便于构造可选数值字段。
func IntPtr(v int) *int { return &v }
