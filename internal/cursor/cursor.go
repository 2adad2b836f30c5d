// Package cursor holds the pure text heuristics that turn a line and a
// cursor column into symbol-lookup inputs. Columns are 0-based UTF-16 code
// units throughout, matching LSP positions.
package cursor

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const identPattern = "``[^`]+``|\\w+"

var (
	identRe     = regexp.MustCompile(identPattern)
	qualifiedRe = regexp.MustCompile("(?:" + identPattern + ")(?:[.?](?:" + identPattern + "))*")

	// A call-looking paren that actually opens a binding or member
	// declaration parameter list.
	letDeclRe    = regexp.MustCompile(`\blet(\s+\w+)*\s*$`)
	memberDeclRe = regexp.MustCompile(`\bmember(\s+[\w.]+)*\s*$`)

	wordRe = regexp.MustCompile(`\w+`)
)

// lineIndex maps between byte offsets and UTF-16 code-unit columns of one
// line. Astral code points occupy two units that share a byte offset.
type lineIndex struct {
	line       string
	byteOfUnit []int
}

func indexLine(line string) lineIndex {
	byteOfUnit := make([]int, 0, len(line)+1)
	for i, r := range line {
		byteOfUnit = append(byteOfUnit, i)
		if r > 0xFFFF {
			byteOfUnit = append(byteOfUnit, i)
		}
	}
	byteOfUnit = append(byteOfUnit, len(line))
	return lineIndex{line: line, byteOfUnit: byteOfUnit}
}

func (ix lineIndex) units() int { return len(ix.byteOfUnit) - 1 }

func (ix lineIndex) byteAt(unit int) int {
	if unit < 0 {
		return 0
	}
	if unit >= len(ix.byteOfUnit) {
		return len(ix.line)
	}
	return ix.byteOfUnit[unit]
}

func (ix lineIndex) unitAt(byteOff int) int {
	return sort.SearchInts(ix.byteOfUnit, byteOff)
}

// UTF16Len is the number of UTF-16 code units in s.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n++
		if r > 0xFFFF {
			n++
		}
	}
	return n
}

func stripBackticks(s string) string {
	if strings.HasPrefix(s, "``") && strings.HasSuffix(s, "``") && len(s) > 4 {
		return s[2 : len(s)-2]
	}
	return s
}

// NamesUnderCursor tokenizes the qualified name the cursor lies in and
// returns its simple identifiers up to and including the one containing the
// cursor, backticks stripped. If the cursor overlaps no qualified name, or
// more than one, the result is empty.
func NamesUnderCursor(line string, character int) []string {
	ix := indexLine(line)
	var hit []int
	hits := 0
	for _, m := range qualifiedRe.FindAllStringIndex(line, -1) {
		start, end := ix.unitAt(m[0]), ix.unitAt(m[1])
		if start <= character && character <= end {
			hits++
			hit = m
		}
	}
	if hits != 1 {
		return nil
	}
	var names []string
	for _, m := range identRe.FindAllStringIndex(line[hit[0]:hit[1]], -1) {
		if ix.unitAt(hit[0]+m[0]) > character {
			break
		}
		names = append(names, stripBackticks(line[hit[0]+m[0]:hit[0]+m[1]]))
	}
	return names
}

// EndOfIdentifierUnderCursor returns the exclusive end column of the single
// identifier the cursor lies within.
func EndOfIdentifierUnderCursor(line string, character int) (int, bool) {
	ix := indexLine(line)
	end, hits := 0, 0
	for _, m := range identRe.FindAllStringIndex(line, -1) {
		start, stop := ix.unitAt(m[0]), ix.unitAt(m[1])
		if start <= character && character <= stop {
			hits++
			end = stop
		}
	}
	if hits != 1 {
		return 0, false
	}
	return end, true
}

// MethodCallBeforeCursor scans left from the cursor for the open paren of
// the enclosing call and returns the length of the trimmed prefix before it.
// Parens belonging to declarations (let bindings, member definitions) are
// not calls and yield no result.
func MethodCallBeforeCursor(line string, character int) (int, bool) {
	ix := indexLine(line)
	i := character - 1
	if i >= ix.units() {
		i = ix.units() - 1
	}
	depth := 0
	found := -1
scan:
	for ; i >= 0; i-- {
		switch line[ix.byteAt(i)] {
		case ')':
			depth++
		case '(':
			if depth > 0 {
				depth--
			} else {
				found = i
				break scan
			}
		}
	}
	if found < 0 {
		return 0, false
	}
	prefix := strings.TrimRight(line[:ix.byteAt(found)], " \t")
	if letDeclRe.MatchString(prefix) || memberDeclRe.MatchString(prefix) {
		return 0, false
	}
	return UTF16Len(prefix), true
}

// CountCommas counts commas from the end of the callee name up to, but not
// including, the character just before the cursor. Commas inside strings or
// nested calls are counted too; callers accept this as a heuristic.
func CountCommas(line string, endOfName, character int) int {
	ix := indexLine(line)
	end := character - 1
	if end > ix.units() {
		end = ix.units()
	}
	count := 0
	for i := endOfName; i < end; i++ {
		if line[ix.byteAt(i)] == ',' {
			count++
		}
	}
	return count
}

// MatchesTitleCase reports whether find matches candidate as an ordered
// subsequence where each character either continues the previous match
// exactly or starts the next title-case word (case-insensitively).
// An empty find matches everything.
func MatchesTitleCase(find, candidate string) bool {
	c := []rune(candidate)
	i := 0
	for _, f := range find {
		if i < len(c) && f == c[i] {
			i++
			continue
		}
		j := i
		for j < len(c) && !(unicode.IsUpper(c[j]) && unicode.ToLower(f) == unicode.ToLower(c[j])) {
			j++
		}
		if j == len(c) {
			return false
		}
		i = j + 1
	}
	return true
}

// AnyIdentifierMatches reports whether any identifier token in text passes
// MatchesTitleCase for find. Used as a cheap pre-filter before parsing a
// whole file.
func AnyIdentifierMatches(find, text string) bool {
	for _, token := range wordRe.FindAllString(text, -1) {
		if MatchesTitleCase(find, token) {
			return true
		}
	}
	return false
}

// PartialName splits the qualified name ending at the cursor into the
// qualifiers already typed and the partial identifier being completed. A
// cursor sitting right after '.' or '?' starts a fresh empty partial.
func PartialName(line string, character int) ([]string, string) {
	ix := indexLine(line)
	if character > 0 {
		b := ix.byteAt(character - 1)
		if b < len(line) && (line[b] == '.' || line[b] == '?') {
			return NamesUnderCursor(line, character-1), ""
		}
	}
	names := NamesUnderCursor(line, character)
	if len(names) == 0 {
		return nil, ""
	}
	return names[:len(names)-1], names[len(names)-1]
}
