package tigge

import (
	"fmt"
	"strings"
	"time"
)

// Epoch is the first forecast date available in the TIGGE archive.
var Epoch = time.Date(2007, time.March, 5, 0, 0, 0, 0, time.UTC)

// Hours are the forecast initialization hours available per date.
var Hours = [4]int{0, 6, 12, 18}

// VariableSet selects which surface parameters a retrieval requests.
type VariableSet int

const (
	// Full requests all 20 variables that can be retrieved in a single
	// TIGGE request.
	Full VariableSet = iota

	// Minimal requests the 5 variables needed for fire-index calculation:
	// 10m u/v wind components, 2m temperature, 2m dewpoint temperature
	// and total precipitation.
	Minimal
)

var (
	fullParams = []string{
		"59", "134", "136", "146", "147", "151", "165", "166", "167", "168",
		"172", "176", "177", "179", "235", "228001", "228039", "228139",
		"228144", "228228",
	}
	minimalParams = []string{"165", "166", "167", "168", "228228"}
)

// Params returns the MARS parameter-ID list, slash-joined in request order.
func (v VariableSet) Params() string {
	if v == Minimal {
		return strings.Join(minimalParams, "/")
	}
	return strings.Join(fullParams, "/")
}

func (v VariableSet) String() string {
	if v == Minimal {
		return "minimal"
	}
	return "full"
}

// Credential is an ECMWF API key together with its registered email address.
type Credential struct {
	Key   string
	Email string
}

// Task identifies a single forecast file to retrieve: one date, one
// initialization hour, one variable set. Tasks are values; the scheduler
// dispatches each one exactly once.
type Task struct {
	Date      time.Time // UTC midnight
	Hour      int       // 0, 6, 12 or 18
	Variables VariableSet
}

// Filename returns the object name the retrieved forecast is stored under,
// e.g. "2016-10-24T00-wildfire.nc" or "2016-10-24T00-wildfire-reduced.nc"
// for the minimal variable set.
func (t Task) Filename() string {
	name := fmt.Sprintf("%sT%02d-wildfire", t.Date.Format("2006-01-02"), t.Hour)
	if t.Variables == Minimal {
		name += "-reduced"
	}
	return name + ".nc"
}

func (t Task) String() string {
	return fmt.Sprintf("%sT%02d (%s)", t.Date.Format("2006-01-02"), t.Hour, t.Variables)
}

// Tasks expands an inclusive date range into the full ordered task list:
// dates ascending, the four initialization hours ascending within each date.
// The slice order is a contract: MARS processes chronologically-ordered
// submissions more efficiently, so the scheduler must preserve it through
// to dispatch.
func Tasks(start, end time.Time, vars VariableSet) []Task {
	start = midnightUTC(start)
	end = midnightUTC(end)

	var tasks []Task
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for _, hour := range Hours {
			tasks = append(tasks, Task{Date: d, Hour: hour, Variables: vars})
		}
	}
	return tasks
}

// ValidHour reports whether hour is one of the available initialization hours.
func ValidHour(hour int) bool {
	for _, h := range Hours {
		if hour == h {
			return true
		}
	}
	return false
}

func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
