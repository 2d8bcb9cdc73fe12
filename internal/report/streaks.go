package report

import "github.com/nhle/lifeplan/internal/model"

// Streaks summarizes a habit's task sequence in window order.
type Streaks struct {
	Current int `json:"current"`
	Longest int `json:"longest"`

	// Histogram counts maximal runs of done tasks by length.
	Histogram map[int]int `json:"histogram"`

	// OneSkipLongest and OneSkipHistogram treat a single missed task
	// between two done ones as part of the run.
	OneSkipLongest   int         `json:"one_skip_longest"`
	OneSkipHistogram map[int]int `json:"one_skip_histogram"`
}

// ComputeStreaks walks statuses, oldest first. Trailing tasks that are
// not completed yet do not break the current streak.
func ComputeStreaks(statuses []model.InboxTaskStatus) Streaks {
	s := Streaks{Histogram: map[int]int{}, OneSkipHistogram: map[int]int{}}

	done := make([]bool, len(statuses))
	for i, st := range statuses {
		done[i] = st == model.StatusDone
	}

	run := 0
	for _, d := range done {
		if d {
			run++
			s.Longest = max(s.Longest, run)
			continue
		}
		if run > 0 {
			s.Histogram[run]++
		}
		run = 0
	}
	if run > 0 {
		s.Histogram[run]++
	}

	end := len(statuses)
	for end > 0 && !statuses[end-1].IsCompleted() {
		end--
	}
	for i := end - 1; i >= 0 && done[i]; i-- {
		s.Current++
	}

	for _, n := range oneSkipRuns(done) {
		s.OneSkipHistogram[n]++
		s.OneSkipLongest = max(s.OneSkipLongest, n)
	}
	return s
}

// oneSkipRuns returns the length of every run of done tasks that may
// bridge one missed task, skipped task included.
func oneSkipRuns(done []bool) []int {
	var runs []int
	for i := 0; i < len(done); {
		if !done[i] {
			i++
			continue
		}
		j, skipped := i, false
		for j < len(done) {
			if done[j] {
				j++
				continue
			}
			if !skipped && j+1 < len(done) && done[j+1] {
				skipped = true
				j++
				continue
			}
			break
		}
		runs = append(runs, j-i)
		i = j
	}
	return runs
}
