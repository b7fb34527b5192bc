package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/examsecure/internal/model"
	"github.com/stemsi/examsecure/internal/repository"
)

type fakeExamStore struct {
	mu        sync.Mutex
	exams     map[uuid.UUID]*model.Exam
	questions map[uuid.UUID][]model.Question
	saves     int
	// collisions makes the next n saves fail with ErrCodeTaken.
	collisions int
	saveErr    error
}

func newFakeExamStore() *fakeExamStore {
	return &fakeExamStore{
		exams:     make(map[uuid.UUID]*model.Exam),
		questions: make(map[uuid.UUID][]model.Question),
	}
}

func (f *fakeExamStore) SaveWithQuestions(_ context.Context, e *model.Exam, qs []model.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.collisions > 0 {
		f.collisions--
		return repository.ErrCodeTaken
	}
	if f.saveErr != nil {
		return f.saveErr
	}
	if existing, ok := f.exams[e.ID]; ok && existing.OwnerID != e.OwnerID {
		return repository.ErrNotFound
	}
	stored := make([]model.Question, len(qs))
	for i := range qs {
		qs[i].ExamID = e.ID
		qs[i].QuestionOrder = i + 1
		if qs[i].ID == uuid.Nil {
			qs[i].ID = uuid.New()
		}
		stored[i] = qs[i]
	}
	e.QuestionCount = len(qs)
	cp := *e
	f.exams[e.ID] = &cp
	f.questions[e.ID] = stored
	return nil
}

func (f *fakeExamStore) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeExamStore) GetByCode(_ context.Context, code string) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.exams {
		if e.ExamCode == code {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeExamStore) ListByOwnerPaginated(_ context.Context, ownerID, limit, offset int) ([]model.Exam, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.Exam
	for _, e := range f.exams {
		if e.OwnerID == ownerID {
			all = append(all, *e)
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeExamStore) Delete(_ context.Context, id uuid.UUID, ownerID int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exams[id]
	if !ok || e.OwnerID != ownerID {
		return "", repository.ErrNotFound
	}
	delete(f.exams, id)
	delete(f.questions, id)
	return e.ExamCode, nil
}

func (f *fakeExamStore) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Question(nil), f.questions[examID]...), nil
}

type fakeAssignments struct {
	assigned map[uuid.UUID][]string
}

func (f *fakeAssignments) IsAssigned(_ context.Context, examID uuid.UUID, email string) (bool, error) {
	for _, e := range f.assigned[examID] {
		if e == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAssignments) ReplaceForExam(_ context.Context, examID uuid.UUID, emails []string) error {
	if f.assigned == nil {
		f.assigned = make(map[uuid.UUID][]string)
	}
	f.assigned[examID] = append([]string(nil), emails...)
	return nil
}

func (f *fakeAssignments) Add(_ context.Context, examID uuid.UUID, email string) error {
	for _, e := range f.assigned[examID] {
		if e == email {
			return repository.ErrAlreadyExists
		}
	}
	if f.assigned == nil {
		f.assigned = make(map[uuid.UUID][]string)
	}
	f.assigned[examID] = append(f.assigned[examID], email)
	return nil
}

func (f *fakeAssignments) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Assignment, error) {
	var out []model.Assignment
	for _, e := range f.assigned[examID] {
		out = append(out, model.Assignment{ExamID: examID, StudentEmail: e})
	}
	return out, nil
}

func (f *fakeAssignments) ReplaceForStudent(_ context.Context, _ int, email string, examIDs []uuid.UUID) error {
	if f.assigned == nil {
		f.assigned = make(map[uuid.UUID][]string)
	}
	for id, emails := range f.assigned {
		kept := emails[:0]
		for _, e := range emails {
			if e != email {
				kept = append(kept, e)
			}
		}
		f.assigned[id] = kept
	}
	for _, id := range examIDs {
		f.assigned[id] = append(f.assigned[id], email)
	}
	return nil
}

func (f *fakeAssignments) ListByStudent(_ context.Context, _ int, email string) ([]model.Assignment, error) {
	var out []model.Assignment
	for id, emails := range f.assigned {
		for _, e := range emails {
			if e == email {
				out = append(out, model.Assignment{ExamID: id, StudentEmail: e})
			}
		}
	}
	return out, nil
}

type fakeCache struct {
	payloads    map[string]*model.ExamPayload
	gets        int
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{payloads: make(map[string]*model.ExamPayload)}
}

func (f *fakeCache) Get(_ context.Context, code string) (*model.ExamPayload, error) {
	f.gets++
	p, ok := f.payloads[code]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return p, nil
}

func (f *fakeCache) Set(_ context.Context, p *model.ExamPayload) error {
	f.payloads[p.ExamCode] = p
	return nil
}

func (f *fakeCache) Invalidate(_ context.Context, code string) error {
	delete(f.payloads, code)
	f.invalidated = append(f.invalidated, code)
	return nil
}

type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts []*model.Attempt
	err      error
}

func (f *fakeAttemptStore) InsertCompleted(_ context.Context, a *model.Attempt, reject bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if reject {
		for _, prev := range f.attempts {
			if prev.ExamID == a.ExamID && prev.StudentID == a.StudentID {
				return repository.ErrAlreadySubmitted
			}
		}
	}
	a.ID = uuid.New()
	a.Status = model.AttemptStatusCompleted
	cp := *a
	f.attempts = append(f.attempts, &cp)
	return nil
}

func (f *fakeAttemptStore) GetForStudent(_ context.Context, id uuid.UUID, studentID int) (*model.Attempt, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.ID == id && a.StudentID == studentID {
			cp := *a
			return &cp, "Exam", nil
		}
	}
	return nil, "", repository.ErrNotFound
}

func (f *fakeAttemptStore) ListByStudent(_ context.Context, studentID int) ([]model.AttemptSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AttemptSummary
	for _, a := range f.attempts {
		if a.StudentID == studentID {
			out = append(out, model.AttemptSummary{ID: a.ID, ExamID: a.ExamID, StudentID: a.StudentID, Score: a.Score})
		}
	}
	return out, nil
}

func (f *fakeAttemptStore) ListByOwnerPaginated(_ context.Context, _ int, _ *uuid.UUID, _, _ int) ([]model.AttemptSummary, int, error) {
	return nil, 0, nil
}

func (f *fakeAttemptStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

type fakeUsers struct {
	users  map[int]*model.User
	nextID int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[int]*model.User), nextID: 1}
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string, role model.Role) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email && u.Role == role {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return repository.ErrAlreadyExists
		}
	}
	u.ID = f.nextID
	u.IsActive = true
	f.nextID++
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id int, hash string) error {
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

type fakeSessions struct {
	active map[int]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{active: make(map[int]string)}
}

func (f *fakeSessions) Save(_ context.Context, userID int, jti string, _ time.Duration) error {
	f.active[userID] = jti
	return nil
}

func (f *fakeSessions) Current(_ context.Context, userID int) (string, error) {
	return f.active[userID], nil
}

func (f *fakeSessions) Clear(_ context.Context, userID int) error {
	delete(f.active, userID)
	return nil
}
