package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/repository"
)

type fakeRoster struct {
	entries []model.AllowedStudent
}

func (f *fakeRoster) List(_ context.Context, adminID int) ([]model.AllowedStudent, error) {
	var out []model.AllowedStudent
	for _, e := range f.entries {
		if e.AdminID == adminID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRoster) Add(_ context.Context, s *model.AllowedStudent) error {
	for _, e := range f.entries {
		if e.AdminID == s.AdminID && e.Email == s.Email {
			return repository.ErrAlreadyExists
		}
	}
	s.ID = len(f.entries) + 1
	f.entries = append(f.entries, *s)
	return nil
}

func (f *fakeRoster) Delete(_ context.Context, id, adminID int) error {
	for i, e := range f.entries {
		if e.ID == id && e.AdminID == adminID {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeRoster) IsAllowed(_ context.Context, adminID int, email string) (bool, error) {
	for _, e := range f.entries {
		if e.AdminID == adminID && e.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func newRosterFixture(t *testing.T) (*RosterService, *fakeAssignments, uuid.UUID) {
	t.Helper()
	exams := newFakeExamStore()
	exam := &model.Exam{ID: uuid.New(), OwnerID: 1, Title: "Quiz", DurationMinutes: 5, ExamCode: "QQQQ1111"}
	if err := exams.SaveWithQuestions(context.Background(), exam, nil); err != nil {
		t.Fatal(err)
	}
	assignments := &fakeAssignments{}
	return NewRosterService(&fakeRoster{}, assignments, exams, zerolog.Nop()), assignments, exam.ID
}

func TestRosterAddDuplicate(t *testing.T) {
	svc, _, _ := newRosterFixture(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, 1, "Kid@Example.com"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := svc.Add(ctx, 1, "kid@example.com"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate err = %v, want ErrAlreadyExists", err)
	}
	if _, err := svc.Add(ctx, 2, "kid@example.com"); err != nil {
		t.Errorf("other admin Add: %v", err)
	}
	list, _ := svc.List(ctx, 1)
	if len(list) != 1 || list[0].Email != "kid@example.com" {
		t.Errorf("roster = %+v", list)
	}
}

func TestRosterRemoveScopedToAdmin(t *testing.T) {
	svc, _, _ := newRosterFixture(t)
	ctx := context.Background()
	entry, _ := svc.Add(ctx, 1, "kid@example.com")

	if err := svc.Remove(ctx, 2, entry.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign remove err = %v, want ErrNotFound", err)
	}
	if err := svc.Remove(ctx, 1, entry.ID); err != nil {
		t.Errorf("Remove: %v", err)
	}
}

func TestAssignStudentsIsIdempotent(t *testing.T) {
	svc, assignments, examID := newRosterFixture(t)
	ctx := context.Background()
	emails := []string{"A@example.com", "b@example.com", "a@example.com ", ""}

	for i := 0; i < 2; i++ {
		got, err := svc.AssignStudents(ctx, 1, examID, emails)
		if err != nil {
			t.Fatalf("AssignStudents: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("round %d: %d assignments, want 2", i, len(got))
		}
	}
	if ok, _ := assignments.IsAssigned(ctx, examID, "a@example.com"); !ok {
		t.Error("a@example.com not assigned")
	}
}

func TestAssignStudentsRequiresOwner(t *testing.T) {
	svc, _, examID := newRosterFixture(t)
	if _, err := svc.AssignStudents(context.Background(), 2, examID, []string{"x@example.com"}); !errors.Is(err, ErrNotExamOwner) {
		t.Errorf("err = %v, want ErrNotExamOwner", err)
	}
	if _, err := svc.Assignments(context.Background(), 1, uuid.New()); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("err = %v, want ErrExamNotFound", err)
	}
}

func TestAssignStudentRejectsRepeat(t *testing.T) {
	svc, assignments, examID := newRosterFixture(t)
	ctx := context.Background()

	a, err := svc.AssignStudent(ctx, 1, examID, " Student@Example.com ")
	if err != nil {
		t.Fatalf("AssignStudent: %v", err)
	}
	if a.StudentEmail != "student@example.com" {
		t.Errorf("email = %q, want normalized", a.StudentEmail)
	}
	if _, err := svc.AssignStudent(ctx, 1, examID, "student@example.com"); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("repeat err = %v, want ErrAlreadyExists", err)
	}
	if got := len(assignments.assigned[examID]); got != 1 {
		t.Errorf("assignments = %d, want 1", got)
	}
}

func TestRosterIsAllowed(t *testing.T) {
	svc, _, _ := newRosterFixture(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, 1, "a@example.com"); err != nil {
		t.Fatal(err)
	}
	ok, err := svc.IsAllowed(ctx, 1, "A@example.com")
	if err != nil || !ok {
		t.Errorf("IsAllowed(own) = %v, %v; want true", ok, err)
	}
	ok, _ = svc.IsAllowed(ctx, 2, "a@example.com")
	if ok {
		t.Error("roster leaked across admins")
	}
}

func TestAssignExamsToStudentReplaces(t *testing.T) {
	svc, assignments, examID := newRosterFixture(t)
	ctx := context.Background()
	second := &model.Exam{ID: uuid.New(), OwnerID: 1, Title: "Second", DurationMinutes: 5, ExamCode: "QQQQ2222"}
	if err := svc.exams.(*fakeExamStore).SaveWithQuestions(ctx, second, nil); err != nil {
		t.Fatal(err)
	}

	got, err := svc.AssignExamsToStudent(ctx, 1, " Kid@Example.com", []uuid.UUID{examID, second.ID, examID})
	if err != nil {
		t.Fatalf("AssignExamsToStudent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("assignments = %+v, want 2", got)
	}

	got, err = svc.AssignExamsToStudent(ctx, 1, "kid@example.com", []uuid.UUID{second.ID})
	if err != nil {
		t.Fatalf("AssignExamsToStudent: %v", err)
	}
	if len(got) != 1 || got[0].ExamID != second.ID {
		t.Errorf("assignments = %+v, want only the second exam", got)
	}
	if ok, _ := assignments.IsAssigned(ctx, examID, "kid@example.com"); ok {
		t.Error("first exam assignment survived the replace")
	}

	got, err = svc.AssignExamsToStudent(ctx, 1, "kid@example.com", nil)
	if err != nil || len(got) != 0 {
		t.Errorf("clear: got %+v, err %v", got, err)
	}
}

func TestAssignExamsToStudentRequiresOwnership(t *testing.T) {
	svc, assignments, examID := newRosterFixture(t)
	ctx := context.Background()
	if _, err := svc.AssignExamsToStudent(ctx, 1, "kid@example.com", []uuid.UUID{examID}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		owner   int
		ids     []uuid.UUID
		wantErr error
	}{
		{"foreign exam", 2, []uuid.UUID{examID}, ErrNotExamOwner},
		{"unknown exam", 1, []uuid.UUID{examID, uuid.New()}, ErrExamNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.AssignExamsToStudent(ctx, tt.owner, "kid@example.com", tt.ids); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if ok, _ := assignments.IsAssigned(ctx, examID, "kid@example.com"); !ok {
				t.Error("rejected request changed existing assignments")
			}
		})
	}
}
