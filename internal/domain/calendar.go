package domain

// CalendarEntry 是放送日历中的一条记录。
type CalendarEntry struct {
	NextEpisode   int           `json:"next_episode"`
	NextEpisodeAt string        `json:"next_episode_at"`
	Duration      *int          `json:"duration"`
	Anime         CalendarAnime `json:"anime"`
}

type CalendarAnime struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Russian       string        `json:"russian"`
	Image         CalendarImage `json:"image"`
	URL           string        `json:"url"`
	Kind          string        `json:"kind"`
	Score         string        `json:"score"`
	Status        string        `json:"status"`
	Episodes      int           `json:"episodes"`
	EpisodesAired int           `json:"episodes_aired"`
}

type CalendarImage struct {
	Original string `json:"original"`
	Preview  string `json:"preview"`
}
