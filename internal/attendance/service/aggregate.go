package service

import (
	"sort"
	"time"

	"punchgate/internal/payroll/models"
)

// Summary aggregates worked time across the queried range.
type Summary struct {
	TotalMinutes int          `json:"totalMinutes"`
	PunchCount   int          `json:"punchCount"`
	Days         []DaySummary `json:"days"`
}

// DaySummary is one day's worked time. Date is the in-punch day in UTC.
type DaySummary struct {
	Date          string `json:"date"`
	WorkedMinutes int    `json:"workedMinutes"`
	PunchCount    int    `json:"punchCount"`
}

// Summarize pairs in/out punches into worked intervals and rolls them up per
// day. It is a pure function over the loaded timecards: no store access, no
// clock reads. An in punch without a matching out contributes its count but
// no minutes.
func Summarize(timecards []*models.Timecard) *Summary {
	type dayAgg struct {
		minutes int
		punches int
	}
	days := make(map[string]*dayAgg)

	day := func(at time.Time) *dayAgg {
		key := at.UTC().Format("2006-01-02")
		if agg, ok := days[key]; ok {
			return agg
		}
		agg := &dayAgg{}
		days[key] = agg
		return agg
	}

	summary := &Summary{}
	for _, timecard := range timecards {
		punches := append([]models.Punch(nil), timecard.Punches...)
		sort.Slice(punches, func(i, j int) bool { return punches[i].At.Before(punches[j].At) })

		var open *models.Punch
		for i := range punches {
			punch := &punches[i]
			summary.PunchCount++
			day(punch.At).punches++

			switch punch.Kind {
			case models.PunchIn:
				open = punch
			case models.PunchOut:
				if open == nil {
					continue
				}
				minutes := int(punch.At.Sub(open.At).Minutes())
				if minutes > 0 {
					day(open.At).minutes += minutes
					summary.TotalMinutes += minutes
				}
				open = nil
			}
		}
	}

	keys := make([]string, 0, len(days))
	for key := range days {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		summary.Days = append(summary.Days, DaySummary{
			Date:          key,
			WorkedMinutes: days[key].minutes,
			PunchCount:    days[key].punches,
		})
	}
	return summary
}
