package domain

import "time"

// WeeklyReport is the aggregate for one Sunday-to-Saturday window, unique per (Year, WeekNumber).
// PostCount and CommentCount count every post and comment timestamped inside
// the window, the same set the sentiment is scored over. The summary reads
// only the top comments of each post.
type WeeklyReport struct {
	ID             int64          `json:"id"`
	Year           int            `json:"year"`
	WeekNumber     int            `json:"week_number"`
	WeekStart      time.Time      `json:"week_start_date"`
	WeekEnd        time.Time      `json:"week_end_date"`
	PostCount      int            `json:"post_count"`
	CommentCount   int            `json:"comment_count"`
	Summary        string         `json:"summary"`
	SentimentLabel SentimentLabel `json:"sentiment_label"`
	SentimentScore ReportScore    `json:"sentiment_score"`
	Breakdown      Breakdown      `json:"sentiment_breakdown"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// WeekBounds returns the window of the given week number. Week 1 starts on the
// Sunday on or before January 4th; the window ends 6 days 23:59:59 later. This
// is not the ISO Monday-start week.
func WeekBounds(year, week int) (time.Time, time.Time) {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	firstSunday := jan4.AddDate(0, 0, -int(jan4.Weekday()))
	start := firstSunday.AddDate(0, 0, 7*(week-1))
	end := start.AddDate(0, 0, 6).Add(23*time.Hour + 59*time.Minute + 59*time.Second)
	return start, end
}

// ValidateWeek checks a (year, week) pair before any report work starts.
func ValidateWeek(year, week int) error {
	if year < 2000 || year > 9999 {
		return Invalid("year %d out of range", year)
	}
	if week < 1 || week > 53 {
		return Invalid("week number %d out of range 1..53", week)
	}
	return nil
}
