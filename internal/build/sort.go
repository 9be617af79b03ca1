package build

import "sort"

func sortStrings(ss []string) {
	sort.Strings(ss)
}

func sortUint32s(xs []uint32) {
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
}

// sortRowEventsByRow stably sorts events by row ascending, so that events
// shredded column-by-column within one row group can be replayed into the
// global accumulator in strictly ascending row order.
func sortRowEventsByRow(events []rowEvent) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].row < events[j].row })
}
