package models

// UserStats summarises the accounts of one clinic.
type UserStats struct {
	TotalUsers   int `json:"totalUsers"`
	BlockedUsers int `json:"blockedUsers"`
	AdminUsers   int `json:"adminUsers"`
}

// AnalysisStats summarises the analyses owned by one user.
type AnalysisStats struct {
	TotalAnalyses       int     `json:"totalAnalyses"`
	TotalPatients       int     `json:"totalPatients"`
	CompletedPercentage float64 `json:"completedPercentage"`
}

// StatsSnapshot is a copy of every counter held for a session.
type StatsSnapshot struct {
	UserStats
	AnalysisStats
}
