package council

// LabelMap is the bidirectional index <-> letter mapping used to anonymize
// candidates. It is built once per run and passed to every formatting routine
// so the same stage-1 index always carries the same letter across stages.
type LabelMap struct {
	letters []string
	index   map[string]int
}

// NewLabelMap builds labels A, B, C... for n candidates.
func NewLabelMap(n int) *LabelMap {
	m := &LabelMap{
		letters: make([]string, n),
		index:   make(map[string]int, n),
	}
	for i := 0; i < n; i++ {
		letter := string(rune('A' + i))
		m.letters[i] = letter
		m.index[letter] = i
	}
	return m
}

// Letter returns the label for a candidate index, or "?" out of range.
func (m *LabelMap) Letter(i int) string {
	if m == nil || i < 0 || i >= len(m.letters) {
		return "?"
	}
	return m.letters[i]
}

// Index returns the candidate index for a letter label.
func (m *LabelMap) Index(letter string) (int, bool) {
	if m == nil {
		return 0, false
	}
	i, ok := m.index[letter]
	return i, ok
}

// Len reports how many candidates the map covers.
func (m *LabelMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.letters)
}
