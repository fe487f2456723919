package diag

// Progress reports the state of a long-running diagnostic phase.
type Progress struct {
	Phase   string // "crosstalk", "suite", ...
	Item    string // Line, step or region currently being processed
	Index   int    // Current item (0-based)
	Total   int    // Number of items in the phase
	Percent int    // 0 at phase start, 100 at phase end
}

// Percent returns index/total as a 0-100 value.
func Percent(index, total int) int {
	if total <= 0 {
		return 100
	}
	if index >= total {
		return 100
	}
	if index <= 0 {
		return 0
	}
	return index * 100 / total
}

// Report sends p on progress if the channel is set.
func Report(progress chan<- Progress, p Progress) {
	if progress != nil {
		progress <- p
	}
}
