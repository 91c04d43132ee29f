package service

import (
	"sort"
	"strings"
	"time"
)

// Shared filter primitives for the expense/income query engine. Dates are
// ISO day strings, so range checks are plain lexicographic comparisons and
// month filtering is a prefix match.

func matchMonth(date, month string) bool {
	return month == "" || strings.HasPrefix(date, month)
}

func matchDateRange(date, from, to string) bool {
	if from != "" && date < from {
		return false
	}
	if to != "" && date > to {
		return false
	}
	return true
}

// sortNewestFirst orders items by creation time descending. The sort is
// stable so records created in the same instant keep their scan order.
func sortNewestFirst[T any](items []T, createdAt func(*T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return createdAt(&items[i]).After(createdAt(&items[j]))
	})
}
