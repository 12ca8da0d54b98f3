package candidates

import "github.com/pawmatch/backend/internal/domain/model"

// Queue is an immutable candidate list walked by a cursor. Decisions
// move the cursor forward, rewinds move it back; the list itself only
// changes on a rebuild.
type Queue struct {
	items   []model.Candidate
	cursor  int
	decided map[int64]struct{}
}

func NewQueue(items []model.Candidate) *Queue {
	return &Queue{
		items:   items,
		decided: make(map[int64]struct{}),
	}
}

// Current returns the candidate under the cursor. False when the queue
// is exhausted.
func (q *Queue) Current() (model.Candidate, bool) {
	if q.cursor >= len(q.items) {
		return model.Candidate{}, false
	}
	return q.items[q.cursor], true
}

// PeekNext returns the candidate behind the current one, for rendering
// the card underneath.
func (q *Queue) PeekNext() (model.Candidate, bool) {
	if q.cursor+1 >= len(q.items) {
		return model.Candidate{}, false
	}
	return q.items[q.cursor+1], true
}

// Advance moves the cursor past the current candidate.
func (q *Queue) Advance() {
	if q.cursor < len(q.items) {
		q.cursor++
	}
}

// Retreat steps the cursor back one candidate. False at the head.
func (q *Queue) Retreat() bool {
	if q.cursor == 0 {
		return false
	}
	q.cursor--
	return true
}

// MarkDecided records that the pet received a decision this session so
// a later rebuild will not surface it again.
func (q *Queue) MarkDecided(petID int64) {
	q.decided[petID] = struct{}{}
}

// Unmark drops the decided flag, used when a decision is rewound.
func (q *Queue) Unmark(petID int64) {
	delete(q.decided, petID)
}

// Rebuild replaces the list and resets the cursor to the head, skipping
// pets already decided this session.
func (q *Queue) Rebuild(items []model.Candidate) {
	filtered := make([]model.Candidate, 0, len(items))
	for _, c := range items {
		if _, ok := q.decided[c.PetID]; ok {
			continue
		}
		filtered = append(filtered, c)
	}

	q.items = filtered
	q.cursor = 0
}

// Remaining reports how many candidates sit at or after the cursor.
func (q *Queue) Remaining() int {
	return len(q.items) - q.cursor
}

func (q *Queue) Len() int {
	return len(q.items)
}
