package lyrics

import "sync"

// NoLine is the index reported before any line is due.
const NoLine = -1

// Matcher tracks which lyric line is current for a playback position. The
// index only moves forward within one set of lines.
type Matcher struct {
	mu    sync.Mutex
	lines []Line
	index int
}

func NewMatcher() *Matcher {
	return &Matcher{index: NoLine}
}

// Set replaces the lines and rewinds to NoLine.
func (m *Matcher) Set(lines []Line) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = lines
	m.index = NoLine
}

// Reset drops all lines.
func (m *Matcher) Reset() {
	m.Set(nil)
}

func (m *Matcher) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lines)
}

func (m *Matcher) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Match advances to the last line due at nowMs, scanning forward from the
// current index. It returns the current line and whether the index moved.
func (m *Matcher) Match(nowMs int64) (Line, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.lines) == 0 {
		return Line{}, false
	}

	next := m.index
	for i := max(m.index, 0); i < len(m.lines) && m.lines[i].TimestampMs <= nowMs; i++ {
		next = i
	}

	if next == m.index {
		if next == NoLine {
			return Line{}, false
		}
		return m.lines[next], false
	}
	m.index = next
	return m.lines[next], true
}
