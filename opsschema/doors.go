package opsschema

import (
	"github.com/warp/hallops/generic"
)

// DefaultDoorsOpenReason is recorded when the quick edit is given no reason.
const DefaultDoorsOpenReason = "Manual Door Time Set via Admin Home"

// SetDoorsOpen sets the doors-open time for date. When the date already
// has a DOORS_OPEN entry, the last one (the one resolution honours) is
// updated in place; otherwise a new entry with an id from newID is
// appended. The updated or inserted entry is returned.
func SetDoorsOpen(cal *Calendar, date, doorsTime, reason string, newID func() string) (Override, error) {
	if !generic.IsValidDate(date) {
		return Override{}, generic.Precondition("set_doors_open", "date must be YYYY-MM-DD", "date", date)
	}
	if !generic.IsValidHHMM(doorsTime) {
		return Override{}, generic.Precondition("set_doors_open", "time must be HH:MM", "time", doorsTime)
	}
	if reason == "" {
		reason = DefaultDoorsOpenReason
	}

	list := cal.Overrides[date]
	// Walk backwards: with several DOORS_OPEN entries the last one wins in
	// ResolveDate, so editing an earlier one would not change the result.
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Kind != OverrideDoorsOpen {
			continue
		}
		list[i].DoorsOpenTime = doorsTime
		list[i].Reason = reason
		return list[i], nil
	}

	o := Override{ID: newID(), Kind: OverrideDoorsOpen, DoorsOpenTime: doorsTime, Reason: reason}
	AddOverride(cal, date, o)
	return o, nil
}
