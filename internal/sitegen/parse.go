// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package sitegen

import "strings"

// ParseLines splits multi-line input into trimmed, non-blank lines.
func ParseLines(input string) []string {
	var lines []string
	for _, line := range strings.Split(input, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// ParseRecords splits each line on "|" into exactly n trimmed parts.
// Short lines are padded with empty strings and extra parts are dropped,
// so "A | B" with n=3 yields ["A", "B", ""].
func ParseRecords(input string, n int) [][]string {
	var records [][]string
	for _, line := range ParseLines(input) {
		parts := strings.Split(line, "|")
		record := make([]string, n)
		for i := 0; i < n && i < len(parts); i++ {
			record[i] = strings.TrimSpace(parts[i])
		}
		records = append(records, record)
	}
	return records
}

// ParseList splits on sep and drops blank items.
func ParseList(input, sep string) []string {
	var items []string
	for _, item := range strings.Split(input, sep) {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
