package domain

// DashboardTotals holds the headline counters of the admin dashboard.
type DashboardTotals struct {
	Users     int64
	Movies    int64
	Reviews   int64
	Actors    int64
	Directors int64
}

// MonthlyCount is one bucket of a per-month histogram, keyed by YYYY-MM.
type MonthlyCount struct {
	Month string
	Count int64
}

// ReviewedMovie pairs a movie with its active review count.
type ReviewedMovie struct {
	Movie
	ReviewCount int64
}
