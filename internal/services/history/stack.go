package history

import "github.com/pawmatch/backend/internal/domain/model"

// Entry is one recorded decision plus its persistence status. Dislikes
// are born synced: they have no remote effect to wait on.
type Entry struct {
	Decision model.SwipeDecision
	// Synced: the remote like effect is durably recorded.
	Synced bool
	// Pending: the persistence call is still in flight.
	Pending bool
}

// Stack is the in-session decision history, newest on top. Not
// goroutine safe; the engine serialises access.
type Stack struct {
	entries []Entry
}

func NewStack() *Stack {
	return &Stack{}
}

func (s *Stack) Len() int {
	return len(s.entries)
}

func (s *Stack) Push(entry Entry) {
	s.entries = append(s.entries, entry)
}

// Pop removes and returns the most recent entry. False when the stack
// is empty.
func (s *Stack) Pop() (Entry, bool) {
	if len(s.entries) == 0 {
		return Entry{}, false
	}
	top := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return top, true
}

func (s *Stack) Peek() (Entry, bool) {
	if len(s.entries) == 0 {
		return Entry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// MarkSynced flips the entry with the given decision ID to durable.
// False when the entry has already left the stack.
func (s *Stack) MarkSynced(decisionID string) bool {
	for i := range s.entries {
		if s.entries[i].Decision.ID == decisionID {
			s.entries[i].Synced = true
			s.entries[i].Pending = false
			return true
		}
	}
	return false
}

// MarkFailed records that the persistence call for the entry gave up.
// The entry stays on the stack so rewind still works locally; it just
// never earns a retraction.
func (s *Stack) MarkFailed(decisionID string) bool {
	for i := range s.entries {
		if s.entries[i].Decision.ID == decisionID {
			s.entries[i].Synced = false
			s.entries[i].Pending = false
			return true
		}
	}
	return false
}

// Clear drops every entry. Used when the queue is rebuilt under new
// filters: entries from the previous candidate set are no longer
// rewindable.
func (s *Stack) Clear() {
	s.entries = nil
}
