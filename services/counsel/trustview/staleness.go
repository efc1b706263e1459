// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package trustview

import (
	"strings"
	"time"
)

// DefaultStaleThresholdDays is the citation age beyond which the UI
// flags a source as stale.
const DefaultStaleThresholdDays = 90

// StaleOptions configures a staleness check.
type StaleOptions struct {
	// ThresholdDays is the age limit in days. Zero falls back to
	// DefaultStaleThresholdDays.
	ThresholdDays int

	// Offline indicates the check runs in offline mode. Staleness is
	// still evaluated against the local wall clock; the flag exists so
	// callers can thread their connectivity state through without
	// branching.
	Offline bool
}

// dateLayouts are the accepted citation date formats, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
}

// IsStale reports whether a citation date is older than the threshold.
//
// An empty or unparseable date returns false: staleness cannot be
// asserted without a valid date, so the check fails open. This is
// deliberate policy inherited from the research UI (favoring
// availability over a false stale flag) and is pinned by tests.
func IsStale(dateStr string, opts StaleOptions) bool {
	return isStaleAt(dateStr, time.Now(), opts)
}

func isStaleAt(dateStr string, now time.Time, opts StaleOptions) bool {
	trimmed := strings.TrimSpace(dateStr)
	if trimmed == "" {
		return false
	}

	parsed, ok := parseDate(trimmed)
	if !ok {
		return false
	}

	threshold := opts.ThresholdDays
	if threshold <= 0 {
		threshold = DefaultStaleThresholdDays
	}

	return now.Sub(parsed) > time.Duration(threshold)*24*time.Hour
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
