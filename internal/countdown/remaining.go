package countdown

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// Remaining is a non-negative duration split into whole days, hours, minutes
// and seconds.
type Remaining struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// Decompose floors d into days, hours, minutes and seconds. Negative
// durations decompose to zero.
func Decompose(d time.Duration) Remaining {
	if d < 0 {
		d = 0
	}
	days := d / day
	d -= days * day
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	return Remaining{
		Days:    int(days),
		Hours:   int(hours),
		Minutes: int(minutes),
		Seconds: int(d / time.Second),
	}
}

// Duration recomposes r. Sub-second precision is lost by Decompose.
func (r Remaining) Duration() time.Duration {
	return time.Duration(r.Days)*day +
		time.Duration(r.Hours)*time.Hour +
		time.Duration(r.Minutes)*time.Minute +
		time.Duration(r.Seconds)*time.Second
}

// IsZero reports whether nothing is left to count.
func (r Remaining) IsZero() bool {
	return r == Remaining{}
}

func (r Remaining) String() string {
	return fmt.Sprintf("%dd %02d:%02d:%02d", r.Days, r.Hours, r.Minutes, r.Seconds)
}
