package domain

import (
	"strings"

	"procurement-workflow/internal/sanitize"
)

// Filter selects processes by aggregate status, then by case-insensitive
// substring match on the id. Input order is preserved and the input slice is
// never modified.
func Filter(processes []Process, status StatusFilter, term string) []Process {
	needle := strings.ToLower(sanitize.String(term))

	out := make([]Process, 0, len(processes))
	for _, p := range processes {
		if status != FilterAll && status != "" && string(p.Status) != string(status) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.ID), needle) {
			continue
		}
		out = append(out, p)
	}
	return out
}
