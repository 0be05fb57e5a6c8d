package models

// PostType distinguishes bug reports from feature requests.
type PostType string

const (
	TypeBug     PostType = "bug"
	TypeRequest PostType = "request"
)

// Valid reports whether t is a known post type.
func (t PostType) Valid() bool {
	return t == TypeBug || t == TypeRequest
}

// Status is a post's position in the fixed lifecycle.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
	StatusTested   Status = "tested"
	StatusArchived Status = "archived"
)

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusResolved, StatusTested, StatusArchived:
		return true
	}
	return false
}

// Next returns the single status a post may move to from s. The lifecycle is
// open -> resolved -> tested -> archived, with archived -> tested as the only
// way back (un-archiving); there is no terminal state.
func (s Status) Next() Status {
	switch s {
	case StatusOpen:
		return StatusResolved
	case StatusResolved:
		return StatusTested
	case StatusTested:
		return StatusArchived
	case StatusArchived:
		return StatusTested
	}
	return ""
}

// CanTransitionTo reports whether moving from s to target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	return s.Valid() && s.Next() == target
}

// Label returns the human readable form used in audit comments.
func (s Status) Label() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusResolved:
		return "Resolved"
	case StatusTested:
		return "Tested"
	case StatusArchived:
		return "Archived"
	}
	return string(s)
}
