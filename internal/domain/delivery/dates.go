package delivery

import "time"

const (
	// leadDays is how many days from now the earliest delivery is offered.
	leadDays = 2
	// windowDays is the number of delivery days offered to the client.
	windowDays = 7

	dayLayout   = "2006-01-02"
	labelLayout = "02 January"
)

// Schedule is the delivery date part of a quote.
type Schedule struct {
	// Active is the selected delivery day at 00:00 UTC.
	Active time.Time
	// Label renders Active as "DD MonthName".
	Label string
	// Offered lists the selectable delivery days as YYYY-MM-DD.
	Offered []string
}

// ActiveMillis returns the selected day as Unix milliseconds.
func (s Schedule) ActiveMillis() int64 {
	return s.Active.UnixMilli()
}

// Plan computes the delivery schedule. When requested is nil the earliest
// offered day is selected. The offered window always starts leadDays after
// now regardless of the requested day.
func Plan(now time.Time, requested *time.Time) Schedule {
	now = now.UTC()
	earliest := now.AddDate(0, 0, leadDays)

	active := earliest
	if requested != nil {
		active = requested.UTC()
	}
	active = midnight(active)

	offered := make([]string, windowDays)
	for i := range windowDays {
		offered[i] = earliest.AddDate(0, 0, i).Format(dayLayout)
	}

	return Schedule{
		Active:  active,
		Label:   active.Format(labelLayout),
		Offered: offered,
	}
}

// ParseDate parses a client supplied delivery date. Both a plain ISO 8601
// date and an RFC 3339 timestamp are accepted; the result is in UTC.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dayLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
