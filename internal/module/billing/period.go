package billing

import "time"

// CurrentPeriod returns the ledger partition key for t, format "2006-01".
//
// Periods are keyed in UTC so that all replicas agree on the month boundary
// regardless of server timezone. Users near midnight KST on the first of the
// month may see their counters roll over up to nine hours "late"; that is
// the documented trade-off of a single global partition clock.
func CurrentPeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// PeriodBounds returns the UTC start and end instants of the calendar month
// containing t. The end bound is exclusive.
func PeriodBounds(t time.Time) (start, end time.Time) {
	u := t.UTC()
	start = time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}
