package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	tea "github.com/charmbracelet/bubbletea"
)

type imageEntry struct {
	name string
	path string
}

type scoredEntry struct {
	entry imageEntry
	score int
}

type picker struct {
	dir      string
	entries  []imageEntry
	filtered []imageEntry
	query    string
	cursor   int
}

type pickerAction int

const (
	pickerActionNone pickerAction = iota
	pickerActionSelected
	pickerActionCancelled
)

type imagesLoadedMsg struct {
	entries []imageEntry
	err     error
}

// loadImagesCmd scans dir for files that look like images by extension.
func loadImagesCmd(dir string) tea.Cmd {
	return func() tea.Msg {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return imagesLoadedMsg{err: fmt.Errorf("read dir: %w", err)}
		}
		var out []imageEntry
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if !hasImageExtension(name) {
				continue
			}
			out = append(out, imageEntry{name: name, path: filepath.Join(dir, name)})
		}
		return imagesLoadedMsg{entries: out}
	}
}

func hasImageExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return true
	}
	return false
}

func newPicker(dir string) *picker {
	return &picker{dir: dir}
}

func (p *picker) SetEntries(entries []imageEntry) {
	p.entries = append([]imageEntry(nil), entries...)
	p.rebuild()
}

func (p *picker) SetQuery(q string) {
	p.query = q
	p.rebuild()
}

func (p *picker) Current() (imageEntry, bool) {
	if p.cursor < 0 || p.cursor >= len(p.filtered) {
		return imageEntry{}, false
	}
	return p.filtered[p.cursor], true
}

func (p *picker) HandleKey(keyName string) pickerAction {
	switch keyName {
	case "up", "ctrl+p":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "ctrl+n":
		if p.cursor < len(p.filtered)-1 {
			p.cursor++
		}
	case "enter":
		if _, ok := p.Current(); ok {
			return pickerActionSelected
		}
	case "esc":
		return pickerActionCancelled
	case "backspace":
		if len(p.query) > 0 {
			p.SetQuery(p.query[:len(p.query)-1])
		}
	default:
		if len(keyName) == 1 && keyName[0] >= ' ' && keyName[0] <= '~' {
			p.SetQuery(p.query + keyName)
		}
	}
	return pickerActionNone
}

func (p *picker) rebuild() {
	p.filtered = rankImages(p.entries, p.query)
	if p.cursor >= len(p.filtered) {
		p.cursor = len(p.filtered) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

// rankImages orders entries by how well their names match query. Substring
// hits rank first, then in-order character matches, then names within a small
// edit distance of the query so typos still find the file.
func rankImages(entries []imageEntry, query string) []imageEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	scored := make([]scoredEntry, 0, len(entries))
	for _, entry := range entries {
		matched, score := matchScore(entry.name, q)
		if !matched {
			continue
		}
		scored = append(scored, scoredEntry{entry: entry, score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return strings.ToLower(scored[i].entry.name) < strings.ToLower(scored[j].entry.name)
	})
	out := make([]imageEntry, len(scored))
	for i := range scored {
		out[i] = scored[i].entry
	}
	return out
}

func matchScore(name, query string) (bool, int) {
	if query == "" {
		return true, 0
	}
	lower := strings.ToLower(name)
	if idx := strings.Index(lower, query); idx >= 0 {
		return true, 1000 - idx
	}
	if isSubsequence(lower, query) {
		return true, 500
	}
	stem := strings.TrimSuffix(lower, filepath.Ext(lower))
	dist := levenshtein.ComputeDistance(stem, query)
	limit := len(query) / 3
	if limit < 1 {
		limit = 1
	}
	if dist <= limit {
		return true, 100 - dist
	}
	return false, 0
}

func isSubsequence(s, sub string) bool {
	i := 0
	for j := 0; j < len(s) && i < len(sub); j++ {
		if s[j] == sub[i] {
			i++
		}
	}
	return i == len(sub)
}

func (p *picker) View(width, height int) string {
	var b strings.Builder
	query := p.query
	if query == "" {
		query = mutedStyle.Render("(type to filter)")
	}
	b.WriteString(labelStyle.Render("Filter: ") + query + "\n")
	b.WriteString(mutedStyle.Render(p.dir) + "\n\n")

	if len(p.filtered) == 0 {
		b.WriteString(mutedStyle.Render("  no matching images"))
		return b.String()
	}

	visible := height - 4
	if visible < 3 {
		visible = 3
	}
	start := 0
	if p.cursor >= visible {
		start = p.cursor - visible + 1
	}
	end := start + visible
	if end > len(p.filtered) {
		end = len(p.filtered)
	}
	for i := start; i < end; i++ {
		line := "  " + p.filtered[i].name
		if i == p.cursor {
			line = cursorStyle.Render("> " + p.filtered[i].name)
		}
		b.WriteString(truncateLine(line, width) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
