package utils

import (
	"time"
)

const DateLayout = "2006-01-02"

func FormatDate(date time.Time) string {
	return date.UTC().Format(DateLayout)
}

func ParseDate(dateStr string) (time.Time, error) {
	return time.Parse(DateLayout, dateStr)
}
