package warehouse

import (
	"strconv"
	"time"

	"dwbuild/internal/normalize"
)

func normalizeForTest(s string) string { return normalize.Text(s) }

func itoa(i int) string { return strconv.Itoa(i) }

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func intp(v int) *int { return &v }
