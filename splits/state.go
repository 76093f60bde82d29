package splits

import "time"

// State is the reader-side progress of a Split. It owns the immutable split
// it was created from plus a cursor and a poll timer.
type State struct {
	split           Split
	currentCommitID string
	nextPollAt      time.Time
}

func NewState(split Split) *State {
	return &State{
		split:           split,
		currentCommitID: split.StartingCommitID,
	}
}

// Split returns the descriptor the state was created with.
func (s *State) Split() Split {
	return s.split
}

func (s *State) ID() string {
	return s.split.ID()
}

func (s *State) CurrentCommitID() string {
	return s.currentCommitID
}

// Advance moves the cursor to the last consumed commit.
func (s *State) Advance(commitID string) {
	s.currentCommitID = commitID
}

func (s *State) NextPollAt() time.Time {
	return s.nextPollAt
}

// PollDue reports whether the split may be polled at now.
func (s *State) PollDue(now time.Time) bool {
	return !now.Before(s.nextPollAt)
}

// DeferPoll prevents polling the split until the given time.
func (s *State) DeferPoll(until time.Time) {
	s.nextPollAt = until
}

// ToSplit derives a fresh split that resumes after the current cursor so
// progress survives a reassignment or a restart.
func (s *State) ToSplit() Split {
	return New(s.split.Table, s.split.StreamID, s.currentCommitID)
}
