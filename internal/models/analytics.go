package models

var AnalyticsRanges = []string{"7d", "30d", "90d", "all"}

type ProgressAnalytics struct {
	TotalStudyTime    int               `json:"totalStudyTime"`
	SessionsCompleted int               `json:"sessionsCompleted"`
	AverageScore      float64           `json:"averageScore"`
	CurrentStreak     int               `json:"currentStreak"`
	SubjectProgress   []SubjectProgress `json:"subjectProgress"`
	WeeklyActivity    []DailyActivity   `json:"weeklyActivity"`
}

type SubjectProgress struct {
	Subject  string  `json:"subject"`
	Progress float64 `json:"progress"`
	Sessions int     `json:"sessions"`
}

type DailyActivity struct {
	Date    string `json:"date"`
	Minutes int    `json:"minutes"`
}
