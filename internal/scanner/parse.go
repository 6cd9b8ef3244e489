package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// parseMovieDir splits a directory name like "Inception (2010)" into
// title and year. The parenthetical must parse as an integer to count
// as a year; "Movie (Extended Cut)" keeps the parens in the title.
func parseMovieDir(name string) (string, *int64) {
	if idx := strings.LastIndex(name, "("); idx >= 0 {
		yearPart := strings.TrimSpace(strings.TrimRight(name[idx+1:], ")"))
		if year, err := strconv.ParseInt(yearPart, 10, 64); err == nil {
			title := strings.TrimSpace(name[:idx])
			return title, &year
		}
	}
	return name, nil
}

// parseSeasonNumber recognizes the season-directory spellings:
// "Season N", "Season_N", and the compact "sNN" form, which is only
// taken when the whole name is at most four characters so show names
// starting with s do not trip it.
func parseSeasonNumber(name string) (int64, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "season ") || strings.HasPrefix(lower, "season_"):
		num, err := strconv.ParseInt(strings.TrimSpace(lower[7:]), 10, 64)
		return num, err == nil
	case strings.HasPrefix(lower, "s") && len(lower) <= 4:
		num, err := strconv.ParseInt(strings.TrimSpace(lower[1:]), 10, 64)
		return num, err == nil
	default:
		return 0, false
	}
}

type seasonDir struct {
	number int64
	path   string
}

// findSeasons lists the season subdirectories of a show directory,
// ordered by season number. Unreadable directories yield nothing.
func findSeasons(path string) []seasonDir {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil
	}

	var seasons []seasonDir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if num, ok := parseSeasonNumber(entry.Name()); ok {
			seasons = append(seasons, seasonDir{number: num, path: filepath.Join(path, entry.Name())})
		}
	}
	sort.Slice(seasons, func(i, j int) bool { return seasons[i].number < seasons[j].number })
	return seasons
}
