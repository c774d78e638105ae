package agent

import (
	"cmp"
	"slices"
	"time"
)

// UsageOptions configure the rolling usage window.
type UsageOptions struct {
	// HistoryDays is the window length. Zero or less disables usage.
	HistoryDays    int
	SampleInterval time.Duration
	// Per-process VRAM shares below MinUserPercent are ignored.
	MinUserPercent float64
	ExcludeUsers   []string
}

type usageSample struct {
	at       time.Time
	interval time.Duration
	users    map[string]float64
}

// UsageWindow keeps per-user VRAM samples for the last HistoryDays in
// memory. It is not safe for concurrent use.
type UsageWindow struct {
	opts    UsageOptions
	exclude map[string]bool
	samples []usageSample
}

// NewUsageWindow returns nil when usage tracking is disabled.
func NewUsageWindow(opts UsageOptions) *UsageWindow {
	if opts.HistoryDays <= 0 {
		return nil
	}
	exclude := make(map[string]bool, len(opts.ExcludeUsers))
	for _, u := range opts.ExcludeUsers {
		exclude[u] = true
	}
	return &UsageWindow{opts: opts, exclude: exclude}
}

// Len returns the number of samples in the window.
func (w *UsageWindow) Len() int {
	if w == nil {
		return 0
	}
	return len(w.samples)
}

// Record adds a sample taken at `at` from gpus, expires samples older than
// the window and returns the summary. A nil window returns nil.
func (w *UsageWindow) Record(at time.Time, gpus []GPU) *Usage {
	if w == nil {
		return nil
	}

	since := at.Add(-time.Duration(w.opts.HistoryDays) * 24 * time.Hour)
	kept := w.samples[:0]
	for _, s := range w.samples {
		if !s.at.Before(since) {
			kept = append(kept, s)
		}
	}
	w.samples = append(kept, usageSample{
		at:       at,
		interval: w.opts.SampleInterval,
		users:    w.userShares(gpus),
	})
	return w.summarize()
}

// userShares sums each user's VRAM share across all GPUs.
func (w *UsageWindow) userShares(gpus []GPU) map[string]float64 {
	users := make(map[string]float64)
	for _, g := range gpus {
		for _, p := range g.Processes {
			user := p.User
			if user == "" {
				user = UnknownUser
			}
			if w.exclude[user] {
				continue
			}
			pct := float64(p.RAMPercent)
			if pct < w.opts.MinUserPercent {
				continue
			}
			users[user] += pct
		}
	}
	return users
}

type userStats struct {
	samples int
	sum     float64
	max     float64
	active  time.Duration
	last    time.Time
}

func (w *UsageWindow) summarize() *Usage {
	stats := make(map[string]*userStats)
	for _, s := range w.samples {
		for user, pct := range s.users {
			st, ok := stats[user]
			if !ok {
				st = &userStats{}
				stats[user] = st
			}
			st.samples++
			st.sum += pct
			st.max = max(st.max, pct)
			st.active += s.interval
			if s.at.After(st.last) {
				st.last = s.at
			}
		}
	}

	users := make([]UserSummary, 0, len(stats))
	for user, st := range stats {
		users = append(users, UserSummary{
			User:           user,
			ActiveHours:    round1(st.active.Hours()),
			AvgVRAMPercent: round1(st.sum / float64(st.samples)),
			MaxVRAMPercent: round1(st.max),
			Samples:        st.samples,
			LastSeen:       st.last.Local().Format(TimestampFormat),
		})
	}
	slices.SortFunc(users, func(a, b UserSummary) int {
		if c := cmp.Compare(b.ActiveHours, a.ActiveHours); c != 0 {
			return c
		}
		if c := cmp.Compare(b.AvgVRAMPercent, a.AvgVRAMPercent); c != 0 {
			return c
		}
		return cmp.Compare(a.User, b.User)
	})

	return &Usage{
		WindowDays:        w.opts.HistoryDays,
		TotalSamples:      len(w.samples),
		SampleIntervalSec: int(w.opts.SampleInterval / time.Second),
		Users:             users,
	}
}
