package service

import "github.com/noah-isme/sma-timetable-api/internal/models"

// swapPeriods exchanges two assignable periods of a day plan, including
// absent cells. It reports false for out-of-range or equal indices and when
// neither period holds a cell.
func swapPeriods(plan models.DayPlan, source, destination int) (models.DayPlan, bool) {
	periods := models.AssignablePeriods()
	if source < 0 || destination < 0 || source >= len(periods) || destination >= len(periods) || source == destination {
		return plan, false
	}
	next := plan.Clone()
	if next == nil {
		next = make(models.DayPlan)
	}
	from, to := periods[source], periods[destination]
	fromCell, fromOK := next[from]
	toCell, toOK := next[to]
	if !fromOK && !toOK {
		return plan, false
	}

	delete(next, from)
	delete(next, to)
	if toOK {
		next[from] = toCell
	}
	if fromOK {
		next[to] = fromCell
	}
	return next, true
}
