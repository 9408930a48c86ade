package classroom

import "time"

// Identity is the authenticated user's profile as reported by the
// identity provider's userinfo endpoint. It is snapshotted into the
// session cookie at login.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl"`
}

// Course is a Classroom course as returned by the provider.
type Course struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Section      string    `json:"section,omitempty"`
	CourseState  string    `json:"courseState,omitempty"`
	CreationTime time.Time `json:"creationTime,omitempty"`
	UpdateTime   time.Time `json:"updateTime,omitempty"`
}

// Member is one entry of a course membership list (teacher or student).
// UserID is the provider's stable external identifier.
type Member struct {
	UserID  string  `json:"userId"`
	Profile Profile `json:"profile"`
}

// Profile is the public profile attached to a membership entry.
type Profile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photoUrl"`
}

// Valid reports whether the member record is usable: the sync engine
// skips (and counts) records without a stable ID or a display name.
func (m Member) Valid() bool {
	return m.UserID != "" && m.Profile.Name != ""
}

// CourseWork is one coursework item (assignment, question, material).
type CourseWork struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	WorkType      string   `json:"workType,omitempty"`
	MaxPoints     float64  `json:"maxPoints,omitempty"`
	AlternateLink string   `json:"alternateLink,omitempty"`
	DueDate       *DueDate `json:"dueDate,omitempty"`
	DueTime       *DueTime `json:"dueTime,omitempty"`
}

// DueDate is the provider's calendar-date representation (no timezone).
type DueDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// DueTime is the provider's time-of-day representation.
type DueTime struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// Submission states as reported by the provider.
const (
	SubmissionNew      = "NEW"
	SubmissionCreated  = "CREATED"
	SubmissionTurnedIn = "TURNED_IN"
	SubmissionReturned = "RETURNED"
)

// Submission is one student's submission for a coursework item.
type Submission struct {
	ID            string   `json:"id"`
	UserID        string   `json:"userId"`
	State         string   `json:"state"`
	AssignedGrade *float64 `json:"assignedGrade,omitempty"`
	Late          bool     `json:"late,omitempty"`
	AlternateLink string   `json:"alternateLink,omitempty"`
}

// --- wire types ---
// The provider nests member profiles one level deeper than our Member
// type; these mirror the JSON and normalize on decode.

type memberResponse struct {
	UserID  string          `json:"userId"`
	Profile profileResponse `json:"profile"`
}

type profileResponse struct {
	ID           string       `json:"id"`
	Name         nameResponse `json:"name"`
	EmailAddress string       `json:"emailAddress"`
	PhotoURL     string       `json:"photoUrl"`
}

type nameResponse struct {
	FullName string `json:"fullName"`
}

func (m memberResponse) toMember() Member {
	return Member{
		UserID: m.UserID,
		Profile: Profile{
			Name:     m.Profile.Name.FullName,
			Email:    m.Profile.EmailAddress,
			PhotoURL: m.Profile.PhotoURL,
		},
	}
}

type userinfoResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (u userinfoResponse) toIdentity() Identity {
	return Identity{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		PhotoURL: u.Picture,
	}
}
