package terminal

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/stemsi/examsecure/internal/model"
)

// CommandKind is what a keystroke asks the session to do.
type CommandKind int

const (
	CmdNone CommandKind = iota
	CmdSave
	CmdSubmit
	CmdRetry
)

// Command is the result of handling one keystroke.
type Command struct {
	Kind       CommandKind
	QuestionID string
	Value      string
}

// Status is the session information shown in the header.
type Status struct {
	Remaining   int
	Warnings    int
	MaxWarnings int
	Grace       int
	Notice      string
	Failed      bool
	Answers     map[string]string
}

var trueFalseOptions = []string{"True", "False"}

const maxDraftLength = 1000

// Screen is the question navigator. It is not safe for concurrent use.
type Screen struct {
	title      string
	questions  []model.QuestionForStudent
	index      int
	cursor     int
	drafts     map[string]string
	confirming bool
}

// NewScreen creates a navigator over the exam's ordered questions.
func NewScreen(title string, questions []model.QuestionForStudent) *Screen {
	return &Screen{
		title:     title,
		questions: questions,
		drafts:    make(map[string]string),
	}
}

// Index returns the position of the current question.
func (s *Screen) Index() int { return s.index }

// Handle applies one keystroke.
//
//	Left/Right    previous/next question
//	Up/Down       move between options
//	1-9           pick an option directly
//	Enter         save the highlighted option or typed answer
//	Tab           ask to submit, then y to confirm
//	r             retry a failed submission
func (s *Screen) Handle(in Input, failed bool) Command {
	if failed {
		if in.Kind == InputRune && (in.Rune == 'r' || in.Rune == 'R') {
			return Command{Kind: CmdRetry}
		}
		return Command{}
	}

	if s.confirming {
		s.confirming = false
		if in.Kind == InputRune && (in.Rune == 'y' || in.Rune == 'Y') {
			return Command{Kind: CmdSubmit}
		}
		return Command{}
	}

	if len(s.questions) == 0 {
		if in.Kind == InputKey && in.Key == KeyTab {
			s.confirming = true
		}
		return Command{}
	}

	q := s.questions[s.index]
	qid := q.ID.String()
	options := optionsOf(q)

	if in.Kind == InputKey {
		switch in.Key {
		case KeyLeft:
			s.move(-1)
		case KeyRight:
			s.move(1)
		case KeyUp:
			if s.cursor > 0 {
				s.cursor--
			}
		case KeyDown:
			if s.cursor < len(options)-1 {
				s.cursor++
			}
		case KeyTab:
			s.confirming = true
		case KeyBackspace:
			if options == nil {
				d := s.drafts[qid]
				if d != "" {
					_, size := utf8.DecodeLastRuneInString(d)
					s.drafts[qid] = d[:len(d)-size]
				}
			}
		case KeyEnter:
			if options != nil {
				return Command{Kind: CmdSave, QuestionID: qid, Value: options[s.cursor]}
			}
			return Command{Kind: CmdSave, QuestionID: qid, Value: s.drafts[qid]}
		}
		return Command{}
	}

	if in.Kind != InputRune {
		return Command{}
	}
	if options != nil {
		if in.Rune >= '1' && in.Rune <= '9' {
			i := int(in.Rune - '1')
			if i < len(options) {
				s.cursor = i
				return Command{Kind: CmdSave, QuestionID: qid, Value: options[i]}
			}
		}
		return Command{}
	}
	if len(s.drafts[qid]) < maxDraftLength {
		s.drafts[qid] += string(in.Rune)
	}
	return Command{}
}

func (s *Screen) move(delta int) {
	next := s.index + delta
	if next < 0 || next >= len(s.questions) {
		return
	}
	s.index = next
	s.cursor = 0
}

// Render draws the whole screen. Lines end in \r\n for raw mode.
func (s *Screen) Render(w io.Writer, st Status) {
	var b strings.Builder
	b.WriteString("\x1b[H\x1b[2J")

	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\r\n")
	}

	line("%s", s.title)
	line("Time left %s   Warnings %d/%d   Answered %d/%d",
		formatClock(st.Remaining), st.Warnings, st.MaxWarnings, answered(st.Answers), len(s.questions))
	if st.Grace > 0 {
		line("\x1b[7m Return to the exam window: %ds \x1b[0m", st.Grace)
	}
	if st.Notice != "" {
		line("%s", st.Notice)
	}
	line("")

	if len(s.questions) > 0 {
		q := s.questions[s.index]
		qid := q.ID.String()
		line("Question %d of %d (%d pt)", s.index+1, len(s.questions), q.Points)
		line("%s", q.QuestionText)
		line("")

		if options := optionsOf(q); options != nil {
			for i, opt := range options {
				marker := " "
				if i == s.cursor {
					marker = ">"
				}
				chosen := " "
				if st.Answers[qid] == opt {
					chosen = "x"
				}
				line("%s [%s] %d. %s", marker, chosen, i+1, opt)
			}
		} else {
			line("Answer: %s_", s.drafts[qid])
			if saved := st.Answers[qid]; saved != "" {
				line("Saved:  %s", saved)
			}
		}
	}

	line("")
	switch {
	case st.Failed:
		line("Submission failed. Press r to retry.")
	case s.confirming:
		line("Submit now? Press y to confirm, any other key to cancel.")
	default:
		line("Left/Right: question   Up/Down/1-9: option   Enter: save   Tab: submit")
	}

	_, _ = io.WriteString(w, b.String())
}

func optionsOf(q model.QuestionForStudent) []string {
	switch q.QuestionType {
	case model.QuestionTypeTrueFalse:
		if len(q.Options) == 0 {
			return trueFalseOptions
		}
		return q.Options
	case model.QuestionTypeMultipleChoice:
		if len(q.Options) == 0 {
			return nil
		}
		return q.Options
	}
	return nil
}

func answered(answers map[string]string) int {
	n := 0
	for _, v := range answers {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
