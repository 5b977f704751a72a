package buildinfo

// Injectées à la compilation via -ldflags, par exemple :
//
//	-X github.com/insomniacdoll/animeloader/internal/buildinfo.Version=v0.3.0
//	-X github.com/insomniacdoll/animeloader/internal/buildinfo.Commit=$(git rev-parse --short HEAD)
//	-X github.com/insomniacdoll/animeloader/internal/buildinfo.Date=$(date -u +%Y-%m-%d)
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
}

func Current() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}

// UserAgent est l'en-tête envoyé aux sites sources.
func UserAgent() string {
	return "animeloader/" + Version
}
