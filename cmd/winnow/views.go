package main

import (
	"fmt"
	"strings"
	"time"

	"winnow/internal/api"
)

func buildItemRows(items []api.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			item.Label,
			formatTypeLabel(item.MediaType),
			formatStatusLabel(item.Status),
			item.Size,
			formatVotes(item.MarkCount, item.TotalUsers),
		})
	}
	return rows
}

func buildTrashRows(items []api.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			item.Label,
			item.Size,
			formatDisplayTime(item.TrashedAt),
			formatVotes(item.MarkCount, item.TotalUsers),
		})
	}
	return rows
}

func buildUserRows(users []api.UserInfo) [][]string {
	rows := make([][]string, 0, len(users))
	for _, user := range users {
		rows = append(rows, []string{
			fmt.Sprintf("%d", user.ID),
			user.Username,
			yesNo(user.IsAdmin),
			formatDisplayTime(user.CreatedAt),
		})
	}
	return rows
}

func buildStatsRows(stats api.StatsSummary) [][]string {
	return [][]string{
		{"Active", fmt.Sprintf("%d", stats.Active), stats.ActiveSize},
		{"Trashed", fmt.Sprintf("%d", stats.Trashed), stats.TrashedSize},
		{"Permanent", fmt.Sprintf("%d", stats.Permanent), "-"},
		{"Gone", fmt.Sprintf("%d", stats.Gone), "-"},
		{"Total", fmt.Sprintf("%d", stats.Total), "-"},
	}
}

func formatVotes(count, total int) string {
	if total <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", count, total)
}

func formatTypeLabel(mediaType string) string {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "movie":
		return "Movie"
	case "tv_season":
		return "TV Season"
	default:
		return formatStatusLabel(mediaType)
	}
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}
