// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package content

import "time"

const (
	listDateLayout    = "06.01.02"
	articleDateLayout = "2006年01月02日"
)

// Tokyo is the zone dates are shown in. Japan has no DST, so a fixed zone
// is used when the tz database is missing.
var Tokyo = loadTokyo()

func loadTokyo() *time.Location {
	if loc, err := time.LoadLocation("Asia/Tokyo"); err == nil {
		return loc
	}
	return time.FixedZone("JST", 9*60*60)
}

// FormatListDate renders t as YY.MM.DD in Tokyo time.
func FormatListDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(Tokyo).Format(listDateLayout)
}

// FormatArticleDate renders t as YYYY年MM月DD日 in Tokyo time.
func FormatArticleDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(Tokyo).Format(articleDateLayout)
}
