package domain

type Settings struct {
	// Concurrence des workers de téléchargement.
	MaxWorkers             int `json:"maxWorkers"`
	MaxConcurrentDownloads int `json:"maxConcurrentDownloads"`

	// Intervalle de polling appliqué aux jobs créés sans intervalle explicite.
	DefaultIntervalSeconds int `json:"defaultIntervalSeconds"`
}

const DefaultIntervalSeconds = 3600

func DefaultSettings() Settings {
	return Settings{
		MaxWorkers:             2,
		MaxConcurrentDownloads: 4,
		DefaultIntervalSeconds: DefaultIntervalSeconds,
	}
}
