package tigge

import "time"

// missingDates are dates known to be permanently absent from the TIGGE
// archive. Retrievals for them would queue forever, so the scheduler skips
// them up front. Keyed by ISO date.
var missingDates = map[string]struct{}{
	"2015-12-03": {},
	"2015-12-10": {},
	"2015-12-16": {},
	"2015-12-17": {},
	"2015-12-18": {},
	"2015-12-19": {},
	"2016-06-24": {},
	"2016-06-28": {},
	"2016-06-29": {},
	"2016-06-30": {},
	"2016-07-01": {},
	"2016-07-02": {},
	"2016-07-03": {},
	"2016-08-06": {},
	"2016-08-10": {},
	"2016-08-23": {},
	"2016-08-24": {},
	"2016-08-25": {},
	"2016-08-28": {},
}

// Missing reports whether the given date is known to be unobtainable from
// the archive.
func Missing(date time.Time) bool {
	_, ok := missingDates[date.Format("2006-01-02")]
	return ok
}
