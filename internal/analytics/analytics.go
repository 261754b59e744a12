package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"retail-assist/internal/storage"
)

// DailyStats aggregates one day of answered questions.
type DailyStats struct {
	Date           string               `json:"date"`
	TotalQuestions int                  `json:"total_questions"`
	UniqueUsers    int                  `json:"unique_users"`
	ByRoute        map[string]int       `json:"by_route"`
	UserStats      map[string]UserStats `json:"user_stats"`
}

// UserStats aggregates one user's activity for the day.
type UserStats struct {
	UserID    string         `json:"user_id"`
	Questions int            `json:"questions"`
	ByRoute   map[string]int `json:"by_route"`
}

// AnalyzeDailyLogs builds stats for the day containing targetDate.
func AnalyzeDailyLogs(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{
		Date:      startOfDay.Format("2006-01-02"),
		ByRoute:   make(map[string]int),
		UserStats: make(map[string]UserStats),
	}

	uniqueUsers := make(map[string]bool)

	for _, event := range events {
		if event.Timestamp.Before(startOfDay) || !event.Timestamp.Before(endOfDay) {
			continue
		}
		if event.Question == "" {
			continue
		}

		stats.TotalQuestions++
		uniqueUsers[event.UserID] = true
		stats.ByRoute[event.Route]++

		userStat, exists := stats.UserStats[event.UserID]
		if !exists {
			userStat = UserStats{
				UserID:  event.UserID,
				ByRoute: make(map[string]int),
			}
		}
		userStat.Questions++
		userStat.ByRoute[event.Route]++
		stats.UserStats[event.UserID] = userStat
	}

	stats.UniqueUsers = len(uniqueUsers)
	return stats
}

// Summary renders a human-readable digest for the daily report.
func (ds *DailyStats) Summary() string {
	summary := fmt.Sprintf(`Retail Assist usage for %s:

- Questions answered: %d
- Unique users: %d

`, ds.Date, ds.TotalQuestions, ds.UniqueUsers)

	if len(ds.ByRoute) > 0 {
		summary += "Routes:\n"
		routes := make([]string, 0, len(ds.ByRoute))
		for route := range ds.ByRoute {
			routes = append(routes, route)
		}
		sort.Strings(routes)
		for _, route := range routes {
			summary += fmt.Sprintf("- %s: %d\n", route, ds.ByRoute[route])
		}
		summary += "\n"
	}

	summary += fmt.Sprintf("Activity (%d users):\n", len(ds.UserStats))
	users := make([]string, 0, len(ds.UserStats))
	for userID := range ds.UserStats {
		users = append(users, userID)
	}
	sort.Strings(users)
	for _, userID := range users {
		summary += fmt.Sprintf("- %s: %d questions\n", userID, ds.UserStats[userID].Questions)
	}

	return summary
}

// ToJSON serializes the stats for detailed analysis.
func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
