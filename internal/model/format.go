// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "fmt"

// FormatSize renders a byte count as kilobytes with two decimals and no
// digit grouping, e.g. 2048 -> "2.00 KB", 1048576 -> "1024.00 KB".
func FormatSize(size int64) string {
	return fmt.Sprintf("%.2f KB", float64(size)/1024)
}

// Label returns the one-line label for a file reference: "name (1.50 KB)".
func (f FileRef) Label() string {
	return f.Name + " (" + FormatSize(f.Size) + ")"
}
