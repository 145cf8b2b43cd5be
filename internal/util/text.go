package util

/*
rdapwatch — domain expiration checks over RDAP, driven from chat
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"strings"
	"unicode/utf8"
)

// CleanLines trims every line and drops the ones left empty.
// Order is preserved; duplicates are kept.
func CleanLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// SplitLines splits a text body on newlines and cleans the result.
// CRLF input is handled by the trim in CleanLines.
func SplitLines(text string) []string {
	return CleanLines(strings.Split(text, "\n"))
}

// ChunkLines splits text into pieces no longer than limit bytes, breaking on
// newlines where possible. A single line longer than limit is hard-split on a
// rune boundary. Empty lines are kept, so joining the pieces with "\n" gives
// back text unless a hard split was needed.
func ChunkLines(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var sb strings.Builder
	open := false // sb holds a chunk, possibly an empty line
	flush := func() {
		if open {
			chunks = append(chunks, sb.String())
			sb.Reset()
			open = false
		}
	}

	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			flush()
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		// +1 for the joining newline.
		if open && sb.Len()+1+len(line) > limit {
			flush()
		}
		if open {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
		open = true
	}
	flush()
	return chunks
}
