package entity

// Content is a learnable item resolved from the content catalog.
// Exactly one of the concrete types below backs each value.
type Content interface {
	Ref() ContentRef
	// Title is a short human label used in listings.
	Title() string
}

// FlashcardContent is a front/back card that belongs to a deck.
type FlashcardContent struct {
	ID     string `json:"-"`
	DeckID string `json:"deck_id"`
	Front  string `json:"front"`
}

func (c FlashcardContent) Ref() ContentRef { return ContentRef{Type: ContentFlashcard, ID: c.ID} }
func (c FlashcardContent) Title() string   { return c.Front }

// QuestionContent is a practice question drawn from a question bank.
type QuestionContent struct {
	ID         string `json:"-"`
	BankID     string `json:"bank_id"`
	Subject    string `json:"subject"`
	Difficulty int    `json:"difficulty"`
}

func (c QuestionContent) Ref() ContentRef { return ContentRef{Type: ContentQuestion, ID: c.ID} }
func (c QuestionContent) Title() string   { return c.Subject }

// ErrorNoteContent is a personal note written after getting a question wrong.
type ErrorNoteContent struct {
	ID               string `json:"-"`
	SourceQuestionID string `json:"source_question_id"`
	Subject          string `json:"subject"`
}

func (c ErrorNoteContent) Ref() ContentRef { return ContentRef{Type: ContentErrorNote, ID: c.ID} }
func (c ErrorNoteContent) Title() string   { return c.Subject }
