package entity

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// InitialStability is the memory stability recorded on a freshly created card.
	InitialStability = 1.0
	// InitialDifficulty is the mid-scale difficulty recorded on a freshly created card.
	InitialDifficulty = 5.0

	MinDifficulty = 1.0
	MaxDifficulty = 10.0
)

// ContentType discriminates the kinds of learnable content.
type ContentType string

const (
	ContentFlashcard ContentType = "flashcard"
	ContentQuestion  ContentType = "question"
	ContentErrorNote ContentType = "error_note"
)

// ContentTypes lists every supported content type in display order.
var ContentTypes = []ContentType{ContentFlashcard, ContentQuestion, ContentErrorNote}

// ParseContentType converts user input into a ContentType.
func ParseContentType(raw string) (ContentType, error) {
	switch ContentType(strings.ToLower(strings.TrimSpace(raw))) {
	case ContentFlashcard:
		return ContentFlashcard, nil
	case ContentQuestion:
		return ContentQuestion, nil
	case ContentErrorNote, "error-note", "errornote":
		return ContentErrorNote, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidContentType, raw)
	}
}

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	switch t {
	case ContentFlashcard, ContentQuestion, ContentErrorNote:
		return true
	}
	return false
}

// ContentRef identifies one piece of content in the external catalog.
type ContentRef struct {
	Type ContentType `json:"type"`
	ID   string      `json:"id"`
}

func (r ContentRef) String() string {
	return string(r.Type) + ":" + r.ID
}

// Validate checks that the reference is usable.
func (r ContentRef) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidContentType, r.Type)
	}
	if strings.TrimSpace(r.ID) == "" {
		return ErrInvalidContentRef
	}
	return nil
}

// State is the position of a card in its learning lifecycle.
type State string

const (
	StateNew        State = "NEW"
	StateLearning   State = "LEARNING"
	StateReview     State = "REVIEW"
	StateRelearning State = "RELEARNING"
)

// ParseState converts user input into a State.
func ParseState(raw string) (State, error) {
	switch State(strings.ToUpper(strings.TrimSpace(raw))) {
	case StateNew:
		return StateNew, nil
	case StateLearning:
		return StateLearning, nil
	case StateReview:
		return StateReview, nil
	case StateRelearning:
		return StateRelearning, nil
	default:
		return "", Validationf("unknown card state %q", raw)
	}
}

// Grade is the learner's self-assessed recall quality.
type Grade int

const (
	GradeAgain Grade = iota + 1
	GradeHard
	GradeGood
	GradeEasy
)

// Grades lists all grades from worst to best.
var Grades = []Grade{GradeAgain, GradeHard, GradeGood, GradeEasy}

var gradeNames = map[Grade]string{
	GradeAgain: "again",
	GradeHard:  "hard",
	GradeGood:  "good",
	GradeEasy:  "easy",
}

// Valid reports whether g is one of the four grades.
func (g Grade) Valid() bool {
	return g >= GradeAgain && g <= GradeEasy
}

// Success reports whether the grade counts as a successful recall.
func (g Grade) Success() bool {
	return g > GradeAgain && g.Valid()
}

func (g Grade) String() string {
	if name, ok := gradeNames[g]; ok {
		return name
	}
	return fmt.Sprintf("grade(%d)", int(g))
}

// ParseGrade accepts either the grade name or its number.
func ParseGrade(raw string) (Grade, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for g, name := range gradeNames {
		if raw == name || raw == fmt.Sprint(int(g)) {
			return g, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidGrade, raw)
}

func (g Grade) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGrade, int(g))
	}
	return []byte(g.String()), nil
}

func (g *Grade) UnmarshalText(text []byte) error {
	parsed, err := ParseGrade(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

func (g Grade) MarshalJSON() ([]byte, error) {
	text, err := g.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

func (g *Grade) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if !Grade(n).Valid() {
			return fmt.Errorf("%w: %d", ErrInvalidGrade, n)
		}
		*g = Grade(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidGrade, data)
	}
	return g.UnmarshalText([]byte(s))
}

// Card is the per-learner scheduling state of one content item.
type Card struct {
	ID            string
	LearnerID     string
	Content       ContentRef
	Due           time.Time
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	State         State
	LastReview    *time.Time
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewCard returns a NEW card for the learner, due immediately.
func NewCard(id, learnerID string, ref ContentRef, now time.Time) *Card {
	return &Card{
		ID:         id,
		LearnerID:  learnerID,
		Content:    ref,
		Due:        now,
		Stability:  InitialStability,
		Difficulty: InitialDifficulty,
		State:      StateNew,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Clone returns a deep copy.
func (c *Card) Clone() *Card {
	if c == nil {
		return nil
	}
	out := *c
	if c.LastReview != nil {
		t := *c.LastReview
		out.LastReview = &t
	}
	return &out
}

// Reset puts the card back to the NEW state, due at now.
func (c *Card) Reset(now time.Time) {
	c.Due = now
	c.Stability = InitialStability
	c.Difficulty = InitialDifficulty
	c.ElapsedDays = 0
	c.ScheduledDays = 0
	c.Reps = 0
	c.Lapses = 0
	c.State = StateNew
	c.LastReview = nil
	c.UpdatedAt = now
}

// IsDue reports whether the card should be presented at now.
func (c *Card) IsDue(now time.Time) bool {
	return !c.Due.After(now)
}
