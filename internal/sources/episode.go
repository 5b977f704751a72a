package sources

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// Ordre significatif : la première règle qui matche gagne.
var episodeRules = []*regexp.Regexp{
	regexp.MustCompile(`第\s*(\d+)\s*[集话話]`),
	regexp.MustCompile(`(?i)EP\.?\s*(\d+)`),
	regexp.MustCompile(`\[(\d+)\]`),
	regexp.MustCompile(`【(\d+)】`),
}

var (
	reSeparators = regexp.MustCompile(`[\s\-_]+`)
	reDigits     = regexp.MustCompile(`^\d{1,3}$`)
	reExtension  = regexp.MustCompile(`(?i)\.(mkv|mp4|avi|rmvb|wmv|flv|ts|m2ts)$`)
	reBracketed  = regexp.MustCompile(`\[[^\]]*\]|【[^】]*】|\([^)]*\)`)
	reMarkers    = regexp.MustCompile(`(?i)第\s*\d+\s*[集话話]|\bEP\.?\s*\d+`)
)

// ExtractEpisode renvoie nil si aucun marqueur n'est reconnu.
func ExtractEpisode(title string) *int {
	s := width.Fold.String(title)
	for _, re := range episodeRules {
		if m := re.FindStringSubmatch(s); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return &n
			}
		}
	}

	// Jeton numérique isolé (1 à 3 chiffres) précédé d'un séparateur.
	tokens := reSeparators.Split(strings.TrimSpace(s), -1)
	for i := 1; i < len(tokens); i++ {
		if !reDigits.MatchString(tokens[i]) {
			continue
		}
		n, err := strconv.Atoi(tokens[i])
		if err == nil && n >= 1 && n <= 999 {
			return &n
		}
	}
	return nil
}

// CleanTitle retire extension, segments entre crochets/parenthèses et marqueurs d'épisode.
func CleanTitle(title string) string {
	s := width.Fold.String(strings.TrimSpace(title))
	s = reExtension.ReplaceAllString(s, "")
	s = reBracketed.ReplaceAllString(s, " ")
	s = reMarkers.ReplaceAllString(s, " ")
	s = strings.TrimSpace(reSeparators.ReplaceAllString(s, " "))
	if s == "" {
		return strings.TrimSpace(title)
	}
	return s
}
