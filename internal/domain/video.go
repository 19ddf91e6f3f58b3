package domain

const (
	ProviderKodik     = "kodik"
	ProviderAniLibria = "anilibria"
)

// VideoSource 是某个 provider 下的一条可播放来源（一个配音组/轨道）。
type VideoSource struct {
	Provider         string            `json:"provider"`
	TranslationID    string            `json:"translation_id"`
	TranslationTitle string            `json:"translation_title"`
	Links            map[string]string `json:"links"`
	HLS              string            `json:"hls,omitempty"`
	Seasons          []Season          `json:"seasons"`
}

type Season struct {
	Number   int       `json:"season"`
	Episodes []Episode `json:"episodes"`
}

// Episode 的 Links 以画质为 key（例如 "720"）。
type Episode struct {
	Number   int               `json:"episode"`
	Name     string            `json:"name,omitempty"`
	Duration int               `json:"duration,omitempty"`
	Links    map[string]string `json:"links"`
	HLS      string            `json:"hls,omitempty"`
}

type Torrent struct {
	Label   string `json:"label"`
	Quality string `json:"quality"`
	Size    int64  `json:"size"`
	Magnet  string `json:"magnet"`
	Seeders int    `json:"seeders"`
}

// VideoResult 是 resolveVideoSources 的对外结果。
// 不同 provider 的 Sources 按注册顺序拼接，不做按 key 合并。
type VideoResult struct {
	Found     bool          `json:"found"`
	Sources   []VideoSource `json:"sources"`
	Torrents  []Torrent     `json:"torrents"`
	ReleaseID int           `json:"release_id,omitempty"`
}
