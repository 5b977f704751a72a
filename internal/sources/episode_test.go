package sources

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractEpisode(t *testing.T) {
	cases := []struct {
		title string
		want  int
	}{
		{"黄金神威 最终章 第1集", 1},
		{"Golden Kamuy EP.2", 2},
		{"Golden Kamuy ep 12 [1080p]", 12},
		{"[LoliHouse] Golden Kamuy [03]", 3},
		{"Golden Kamuy - 4", 4},
		{"Golden Kamuy 05", 5},
		{"【喵萌奶茶屋】黄金神威【06】【1080p】", 6},
		{"黄金神威 第０７集", 7},
		{"[Group] Show - 08 [1080p][CHS].mkv", 8},
		{"ShowEP02", 2},
		{"Golden Kamuy_ep.9", 9},
	}
	for _, c := range cases {
		got := ExtractEpisode(c.title)
		require.NotNil(t, got, c.title)
		require.Equal(t, c.want, *got, c.title)
	}
}

func TestExtractEpisode_NoMarker(t *testing.T) {
	for _, title := range []string{
		"Golden Kamuy The Final Chapter",
		"Golden Kamuy 1080p",
		"Show 2024",
		"",
	} {
		require.Nil(t, ExtractEpisode(title), title)
	}
}

func TestCleanTitle(t *testing.T) {
	require.Equal(t, "黄金神威 最终章", CleanTitle("黄金神威 最终章 第1集"))
	require.Equal(t, "Golden Kamuy", CleanTitle("[LoliHouse] Golden Kamuy [03] (1080p).mkv"))
	require.Equal(t, "Golden Kamuy", CleanTitle("Golden Kamuy EP.02"))
	require.Equal(t, "Show 04", CleanTitle("Show_-_04"))
	// Rien ne survit : on garde le titre brut.
	require.Equal(t, "[only brackets]", CleanTitle("[only brackets]"))
}
