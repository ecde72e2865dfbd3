/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
)

// humanReadableSize formats a byte count in SI units, as upload limits and
// served page sizes are reported.
func humanReadableSize(bytes int64) string {
	const unit = 1000

	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	size := float64(bytes)
	for _, prefix := range "kMGTPE" {
		size /= unit
		if size < unit {
			return fmt.Sprintf("%.1f %cB", size, prefix)
		}
	}

	return fmt.Sprintf("%.1f EB", size)
}
