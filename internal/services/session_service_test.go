package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/hireflow/assessment-service/internal/events"
	"github.com/hireflow/assessment-service/internal/models"
	"github.com/hireflow/assessment-service/internal/repositories"
	"github.com/hireflow/assessment-service/internal/validator"
	"gorm.io/gorm"
)

// ===== IN-MEMORY MOCK REPOSITORY =====

type mockRepository struct {
	mu         sync.Mutex
	sessions   map[uint]*models.AssessmentSession
	templates  map[uint]*models.AssessmentTemplate
	candidates map[uint]*models.Candidate
	jobs       map[uint]*models.Job
	users      map[string]*models.User
	answers    map[string]*models.SessionAnswer
	nextID     uint
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		sessions:   make(map[uint]*models.AssessmentSession),
		templates:  make(map[uint]*models.AssessmentTemplate),
		candidates: make(map[uint]*models.Candidate),
		jobs:       make(map[uint]*models.Job),
		users:      make(map[string]*models.User),
		answers:    make(map[string]*models.SessionAnswer),
		nextID:     1,
	}
}

func (m *mockRepository) Template() repositories.TemplateRepository   { return &mockTemplateRepo{m} }
func (m *mockRepository) Session() repositories.SessionRepository     { return &mockSessionRepo{m} }
func (m *mockRepository) Answer() repositories.AnswerRepository       { return &mockAnswerRepo{m} }
func (m *mockRepository) Candidate() repositories.CandidateRepository { return &mockCandidateRepo{m} }
func (m *mockRepository) Job() repositories.JobRepository             { return &mockJobRepo{m} }
func (m *mockRepository) User() repositories.UserRepository           { return &mockUserRepo{m} }

func (m *mockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}
func (m *mockRepository) Ping(ctx context.Context) error { return nil }
func (m *mockRepository) Close() error                   { return nil }

func (m *mockRepository) allocID() uint {
	id := m.nextID
	m.nextID++
	return id
}

type mockSessionRepo struct{ m *mockRepository }

func (r *mockSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *models.AssessmentSession) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	session.ID = r.m.allocID()
	r.m.sessions[session.ID] = session
	return nil
}

func (r *mockSessionRepo) CreateBatch(ctx context.Context, tx *gorm.DB, sessions []*models.AssessmentSession) error {
	for _, session := range sessions {
		if err := r.Create(ctx, tx, session); err != nil {
			return err
		}
	}
	return nil
}

func (r *mockSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentSession, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	session, ok := r.m.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *mockSessionRepo) GetByToken(ctx context.Context, tx *gorm.DB, token string) (*models.AssessmentSession, error) {
	return r.GetByTokenWithDetails(ctx, tx, token)
}

func (r *mockSessionRepo) GetByTokenWithDetails(ctx context.Context, tx *gorm.DB, token string) (*models.AssessmentSession, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, session := range r.m.sessions {
		if session.Token == token {
			copied := *session
			if template, ok := r.m.templates[session.TemplateID]; ok {
				copied.Template = *template
			}
			if candidate, ok := r.m.candidates[session.CandidateID]; ok {
				copied.Candidate = *candidate
			}
			if job, ok := r.m.jobs[session.JobID]; ok {
				copied.Job = *job
			}
			copied.Answers = nil
			for _, answer := range r.m.answers {
				if answer.SessionID == session.ID {
					copied.Answers = append(copied.Answers, *answer)
				}
			}
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockSessionRepo) Update(ctx context.Context, tx *gorm.DB, session *models.AssessmentSession) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.sessions[session.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *session
	copied.Template = models.AssessmentTemplate{}
	copied.Candidate = models.Candidate{}
	copied.Job = models.Job{}
	copied.Answers = nil
	r.m.sessions[session.ID] = &copied
	return nil
}

func (r *mockSessionRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.SessionFilters) ([]*models.AssessmentSession, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.AssessmentSession
	for _, session := range r.m.sessions {
		if filters.Status != nil && session.Status != *filters.Status {
			continue
		}
		if filters.InvitedBy != nil && session.InvitedBy != *filters.InvitedBy {
			continue
		}
		if filters.TemplateID != nil && session.TemplateID != *filters.TemplateID {
			continue
		}
		copied := *session
		if candidate, ok := r.m.candidates[session.CandidateID]; ok {
			copied.Candidate = *candidate
		}
		if job, ok := r.m.jobs[session.JobID]; ok {
			copied.Job = *job
		}
		for _, answer := range r.m.answers {
			if answer.SessionID == session.ID {
				copied.Answers = append(copied.Answers, *answer)
			}
		}
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *mockSessionRepo) MarkExpired(ctx context.Context, tx *gorm.DB, now time.Time) ([]*models.AssessmentSession, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var swept []*models.AssessmentSession
	for _, session := range r.m.sessions {
		if session.ExpiresAt.Before(now) &&
			(session.Status == models.SessionPending || session.Status == models.SessionInProgress) {
			session.Status = models.SessionExpired
			reason := models.SessionEndReasonExpired
			session.EndReason = &reason
			copied := *session
			swept = append(swept, &copied)
		}
	}
	return swept, nil
}

func (r *mockSessionRepo) GetStats(ctx context.Context, tx *gorm.DB, filters repositories.SessionFilters) (*repositories.SessionStats, error) {
	sessions, total, _ := r.List(ctx, tx, filters)
	stats := &repositories.SessionStats{
		TotalSessions:   int(total),
		StatusBreakdown: make(map[models.SessionStatus]int),
	}
	for _, session := range sessions {
		stats.StatusBreakdown[session.Status]++
	}
	return stats, nil
}

type mockAnswerRepo struct{ m *mockRepository }

func answerKey(sessionID, questionID uint) string {
	return fmt.Sprintf("%d:%d", sessionID, questionID)
}

func (r *mockAnswerRepo) Upsert(ctx context.Context, tx *gorm.DB, answer *models.SessionAnswer) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := answerKey(answer.SessionID, answer.QuestionID)
	if existing, ok := r.m.answers[key]; ok {
		existing.Score = answer.Score
		existing.ScoredValue = answer.ScoredValue
		existing.LastModifiedAt = answer.LastModifiedAt
		return nil
	}
	copied := *answer
	copied.ID = r.m.allocID()
	r.m.answers[key] = &copied
	return nil
}

func (r *mockAnswerRepo) GetBySessionAndQuestion(ctx context.Context, tx *gorm.DB, sessionID, questionID uint) (*models.SessionAnswer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if answer, ok := r.m.answers[answerKey(sessionID, questionID)]; ok {
		copied := *answer
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockAnswerRepo) CountBySession(ctx context.Context, tx *gorm.DB, sessionID uint) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var count int64
	for _, answer := range r.m.answers {
		if answer.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

type mockTemplateRepo struct{ m *mockRepository }

func (r *mockTemplateRepo) Create(ctx context.Context, tx *gorm.DB, template *models.AssessmentTemplate) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	template.ID = r.m.allocID()
	r.m.templates[template.ID] = template
	return nil
}

func (r *mockTemplateRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentTemplate, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	template, ok := r.m.templates[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return template, nil
}

func (r *mockTemplateRepo) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentTemplate, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *mockTemplateRepo) Update(ctx context.Context, tx *gorm.DB, template *models.AssessmentTemplate) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.templates[template.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.m.templates[template.ID] = template
	return nil
}

func (r *mockTemplateRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.templates, id)
	return nil
}

func (r *mockTemplateRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.TemplateFilters) ([]*models.AssessmentTemplate, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.AssessmentTemplate
	for _, template := range r.m.templates {
		if filters.Status != nil && template.Status != *filters.Status {
			continue
		}
		if filters.CreatedBy != nil && template.CreatedBy != *filters.CreatedBy {
			continue
		}
		out = append(out, template)
	}
	return out, int64(len(out)), nil
}

func (r *mockTemplateRepo) Search(ctx context.Context, tx *gorm.DB, query string, filters repositories.TemplateFilters) ([]*models.AssessmentTemplate, int64, error) {
	return r.List(ctx, tx, filters)
}

func (r *mockTemplateRepo) ReplaceQuestions(ctx context.Context, tx *gorm.DB, templateID uint, questions []*models.TemplateQuestion) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	template, ok := r.m.templates[templateID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	template.Questions = nil
	for i, question := range questions {
		question.ID = r.m.allocID()
		question.TemplateID = templateID
		question.Position = i + 1
		template.Questions = append(template.Questions, *question)
	}
	return nil
}

func (r *mockTemplateRepo) GetStats(ctx context.Context, tx *gorm.DB, templateID uint) (*repositories.TemplateStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stats := &repositories.TemplateStats{}
	for _, session := range r.m.sessions {
		if session.TemplateID != templateID {
			continue
		}
		stats.TotalSessions++
		if session.Status == models.SessionCompleted {
			stats.CompletedSessions++
		}
	}
	if template, ok := r.m.templates[templateID]; ok {
		stats.QuestionCount = len(template.Questions)
	}
	return stats, nil
}

type mockCandidateRepo struct{ m *mockRepository }

func (r *mockCandidateRepo) Create(ctx context.Context, tx *gorm.DB, candidate *models.Candidate) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	candidate.ID = r.m.allocID()
	r.m.candidates[candidate.ID] = candidate
	return nil
}

func (r *mockCandidateRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Candidate, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	candidate, ok := r.m.candidates[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return candidate, nil
}

func (r *mockCandidateRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.Candidate, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, candidate := range r.m.candidates {
		if candidate.Email == email {
			return candidate, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type mockJobRepo struct{ m *mockRepository }

func (r *mockJobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Job, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	job, ok := r.m.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return job, nil
}

type mockUserRepo struct{ m *mockRepository }

func (r *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	user, ok := r.m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *mockUserRepo) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	return nil, nil
}
func (r *mockUserRepo) Search(ctx context.Context, query string, limit int) ([]*models.User, error) {
	return nil, nil
}

// ===== FIXTURES =====

func newTestSessionService(repo *mockRepository) (*sessionService, *events.MockEventPublisher) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	publisher := events.NewMockEventPublisher(logger)
	svc := &sessionService{
		repo:           repo,
		logger:         logger,
		validator:      validator.New(),
		eventPublisher: publisher,
	}
	return svc, publisher
}

func seedSession(repo *mockRepository, status models.SessionStatus, timeLimit *int) *models.AssessmentSession {
	template := &models.AssessmentTemplate{
		Title:     "Workplace Personality Inventory",
		Status:    models.TemplateActive,
		ScaleType: 5,
		TimeLimit: timeLimit,
		CreatedBy: "recruiter-1",
		Questions: []models.TemplateQuestion{
			{ID: 101, Stem: "I enjoy collaborating with others", Position: 1},
			{ID: 102, Stem: "I prefer working alone", Position: 2, ReverseScored: true},
			{ID: 103, Stem: "I stay calm under pressure", Position: 3},
		},
	}
	repo.mu.Lock()
	template.ID = repo.allocID()
	repo.templates[template.ID] = template

	candidate := &models.Candidate{FullName: "Dana Reyes", Email: "dana@example.com"}
	candidate.ID = repo.allocID()
	repo.candidates[candidate.ID] = candidate

	job := &models.Job{Title: "Backend Engineer", CreatedBy: "recruiter-1"}
	job.ID = repo.allocID()
	repo.jobs[job.ID] = job

	session := &models.AssessmentSession{
		Token:       "tok-test-1",
		TemplateID:  template.ID,
		CandidateID: candidate.ID,
		JobID:       job.ID,
		Status:      status,
		ExpiresAt:   time.Now().Add(24 * time.Hour),
		TimeLimit:   timeLimit,
		InvitedBy:   "recruiter-1",
	}
	session.ID = repo.allocID()
	if status == models.SessionInProgress {
		now := time.Now()
		session.StartedAt = &now
	}
	repo.sessions[session.ID] = session
	repo.mu.Unlock()
	return session
}

func intPtr(v int) *int { return &v }

// ===== TESTS =====

func TestSessionService_GetByToken_Idempotent(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestSessionService(repo)
	seedSession(repo, models.SessionPending, intPtr(600))
	ctx := context.Background()

	first, err := svc.GetByToken(ctx, "tok-test-1")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	second, err := svc.GetByToken(ctx, "tok-test-1")
	if err != nil {
		t.Fatalf("GetByToken (second): %v", err)
	}
	if first.Status != second.Status || first.Token != second.Token {
		t.Errorf("repeated fetches diverged: %v vs %v", first.Status, second.Status)
	}
	if first.Status != models.SessionPending {
		t.Errorf("expected pending, got %s", first.Status)
	}
}

func TestSessionService_GetByToken_NotFound(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestSessionService(repo)

	_, err := svc.GetByToken(context.Background(), "missing")
	if err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionService_Start_SetsDeadlineOnce(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestSessionService(repo)
	seedSession(repo, models.SessionPending, intPtr(600))
	ctx := context.Background()

	view, err := svc.Start(ctx, "tok-test-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if view.Status != models.SessionInProgress {
		t.Fatalf("expected in_progress, got %s", view.Status)
	}
	firstStart := *view.StartedAt

	// Starting again resumes; the original start time is preserved.
	resumed, err := svc.Start(ctx, "tok-test-1")
	if err != nil {
		t.Fatalf("Start (resume): %v", err)
	}
	if !resumed.StartedAt.Equal(firstStart) {
		t.Errorf("resume refreshed StartedAt: %v vs %v", resumed.StartedAt, firstStart)
	}
	if resumed.TimeRemaining == nil || *resumed.TimeRemaining <= 0 || *resumed.TimeRemaining > 600 {
		t.Errorf("unexpected time remaining: %v", resumed.TimeRemaining)
	}
}

func TestSessionService_Start_EmitsStartedEvent(t *testing.T) {
	repo := newMockRepository()
	svc, publisher := newTestSessionService(repo)
	seedSession(repo, models.SessionPending, intPtr(600))

	if _, err := svc.Start(context.Background(), "tok-test-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 1 || published[0].Type != events.EventSessionStarted {
		t.Fatalf("expected one session.started event, got %+v", published)
	}
}

func TestSessionService_AgreementAfterStart(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestSessionService(repo)
	session := seedSession(repo, models.SessionPending, intPtr(600))

	consentURL := "https://example.com/consent.pdf"
	repo.mu.Lock()
	repo.jobs[session.JobID].ConsentDocumentURL = &consentURL
	repo.mu.Unlock()

	// Starting has no consent precondition: the clock begins first, the
	// agreement is recorded on the already running session.
	ctx := context.Background()
	view, err := svc.Start(ctx, "tok-test-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if view.Status != models.SessionInProgress {
		t.Fatalf("expected in_progress, got %s", view.Status)
	}
	if !view.RequiresConsent || view.ConsentAccepted {
		t.Fatalf("expected consent still owed after start, got %+v", view)
	}

	accepted, err := svc.AcceptAgreement(ctx, "tok-test-1")
	if err != nil {
		t.Fatalf("AcceptAgreement: %v", err)
	}
	if !accepted.ConsentAccepted {
		t.Error("agreement not recorded")
	}
	if accepted.StartedAt == nil || !accepted.StartedAt.Equal(*view.StartedAt) {
		t.Errorf("agreement changed the start time: %v vs %v", accepted.StartedAt, view.StartedAt)
	}
}

func TestSessionService_SubmitAnswer_ScaleBound(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestSessionService(repo)
	session := seedSession(repo, models.SessionInProgress, intPtr(600))
	ctx := context.Background()

	err := svc.SubmitAnswer(ctx, "tok-test-1", &SubmitAnswerRequest{QuestionID: 101, Score: 6})
	if err != ErrScoreOutOfRange {
		t.Fatalf("expected ErrScoreOutOfRange, got %v", err)
	}

	// The rejected answer must leave nothing behind.
	count, _ := repo.Answer().CountBySession(ctx, nil, session.ID)
	if count != 0 {
		t.Errorf("out-of-range answer was stored, count=%d", count)
	}
}

func TestSessionService_SubmitAnswer_UnknownQuestion(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestSessionService(repo)
	seedSession(repo, models.SessionInProgress, intPtr(600))

	err := svc.SubmitAnswer(context.Background(), "tok-test-1", &SubmitAnswerRequest{QuestionID: 999, Score: 3})
	if err != ErrQuestionNotInTemplate {
		t.Fatalf("expected ErrQuestionNotInTemplate, got %v", err)
	}
}

func TestSessionService_SubmitAnswer_LastWriteWins(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestSessionService(repo)
	session := seedSession(repo, models.SessionInProgress, intPtr(600))
	ctx := context.Background()

	if err := svc.SubmitAnswer(ctx, "tok-test-1", &SubmitAnswerRequest{QuestionID: 101, Score: 2}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := svc.SubmitAnswer(ctx, "tok-test-1", &SubmitAnswerRequest{QuestionID: 101, Score: 5}); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	answer, err := repo.Answer().GetBySessionAndQuestion(ctx, nil, session.ID, 101)
	if err != nil {
		t.Fatalf("answer not stored: %v", err)
	}
	if answer.Score != 5 {
		t.Errorf("expected latest score 5, got %d", answer.Score)
	}
	count, _ := repo.Answer().CountBySession(ctx, nil, session.ID)
	if count != 1 {
		t.Errorf("expected one row per question, got %d", count)
	}
}

func TestSessionService_SubmitAnswer_ReverseScoring(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestSessionService(repo)
	session := seedSession(repo, models.SessionInProgress, intPtr(600))
	ctx := context.Background()

	// Question 102 is reverse-keyed on a 5-point scale: raw 2 scores as 4.
	if err := svc.SubmitAnswer(ctx, "tok-test-1", &SubmitAnswerRequest{QuestionID: 102, Score: 2}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	answer, _ := repo.Answer().GetBySessionAndQuestion(ctx, nil, session.ID, 102)
	if answer.ScoredValue != 4 {
		t.Errorf("expected scored value 4, got %d", answer.ScoredValue)
	}
	if answer.Score != 2 {
		t.Errorf("raw score must stay as submitted, got %d", answer.Score)
	}
}

func TestSessionService_Complete_RequiresAllAnswers(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestSessionService(repo)
	seedSession(repo, models.SessionInProgress, intPtr(600))
	ctx := context.Background()

	if err := svc.SubmitAnswer(ctx, "tok-test-1", &SubmitAnswerRequest{QuestionID: 101, Score: 3}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.Complete(ctx, "tok-test-1"); err != ErrIncompleteAnswers {
		t.Fatalf("expected ErrIncompleteAnswers, got %v", err)
	}

	for _, questionID := range []uint{102, 103} {
		if err := svc.SubmitAnswer(ctx, "tok-test-1", &SubmitAnswerRequest{QuestionID: questionID, Score: 4}); err != nil {
			t.Fatalf("submit %d: %v", questionID, err)
		}
	}

	view, err := svc.Complete(ctx, "tok-test-1")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if view.Status != models.SessionCompleted {
		t.Errorf("expected completed, got %s", view.Status)
	}
	if view.EndReason == nil || *view.EndReason != models.SessionEndReasonManual {
		t.Errorf("expected manual end reason, got %v", view.EndReason)
	}
}

func TestSessionService_Complete_Idempotent(t *testing.T) {
	repo := newMockRepository()
	svc, publisher := newTestSessionService(repo)
	seedSession(repo, models.SessionInProgress, intPtr(600))
	ctx := context.Background()

	for _, questionID := range []uint{101, 102, 103} {
		if err := svc.SubmitAnswer(ctx, "tok-test-1", &SubmitAnswerRequest{QuestionID: questionID, Score: 3}); err != nil {
			t.Fatalf("submit %d: %v", questionID, err)
		}
	}

	if _, err := svc.Complete(ctx, "tok-test-1"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	publisher.ClearEvents()

	// Completing again is a no-op that reports the existing result.
	view, err := svc.Complete(ctx, "tok-test-1")
	if err != nil {
		t.Fatalf("Complete (repeat): %v", err)
	}
	if view.Status != models.SessionCompleted {
		t.Errorf("expected completed, got %s", view.Status)
	}
	if published := publisher.GetPublishedEvents(); len(published) != 0 {
		t.Errorf("repeat completion published %d events", len(published))
	}
}

func TestSessionService_HandleTimeout_ExactlyOnce(t *testing.T) {
	repo := newMockRepository()
	svc, publisher := newTestSessionService(repo)
	session := seedSession(repo, models.SessionInProgress, intPtr(600))
	ctx := context.Background()

	if err := svc.HandleTimeout(ctx, session.ID); err != nil {
		t.Fatalf("HandleTimeout: %v", err)
	}
	// The second call must see the terminal state and do nothing.
	if err := svc.HandleTimeout(ctx, session.ID); err != nil {
		t.Fatalf("HandleTimeout (repeat): %v", err)
	}

	var timedOut int
	for _, event := range publisher.GetPublishedEvents() {
		if event.Type == events.EventSessionTimedOut {
			timedOut++
		}
	}
	if timedOut != 1 {
		t.Errorf("expected exactly one timed-out event, got %d", timedOut)
	}

	stored, _ := repo.Session().GetByID(ctx, nil, session.ID)
	if stored.Status != models.SessionCompleted {
		t.Errorf("expected completed, got %s", stored.Status)
	}
	if stored.EndReason == nil || *stored.EndReason != models.SessionEndReasonTimeout {
		t.Errorf("expected time_out end reason, got %v", stored.EndReason)
	}
}

func TestSessionService_Timeout_Then_ManualComplete(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestSessionService(repo)
	session := seedSession(repo, models.SessionInProgress, intPtr(600))
	ctx := context.Background()

	for _, questionID := range []uint{101, 102, 103} {
		if err := svc.SubmitAnswer(ctx, "tok-test-1", &SubmitAnswerRequest{QuestionID: questionID, Score: 3}); err != nil {
			t.Fatalf("submit %d: %v", questionID, err)
		}
	}
	if err := svc.HandleTimeout(ctx, session.ID); err != nil {
		t.Fatalf("HandleTimeout: %v", err)
	}

	// Manual completion after the timeout won: status stays, reason stays.
	view, err := svc.Complete(ctx, "tok-test-1")
	if err != nil {
		t.Fatalf("Complete after timeout: %v", err)
	}
	if view.EndReason == nil || *view.EndReason != models.SessionEndReasonTimeout {
		t.Errorf("manual completion overrode timeout reason: %v", view.EndReason)
	}
}

func TestSessionService_Resume_NoExtraTime(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestSessionService(repo)
	session := seedSession(repo, models.SessionInProgress, intPtr(600))
	ctx := context.Background()

	// Push the start far enough back that the budget is spent.
	repo.mu.Lock()
	past := time.Now().Add(-20 * time.Minute)
	repo.sessions[session.ID].StartedAt = &past
	repo.mu.Unlock()

	view, err := svc.GetByToken(ctx, "tok-test-1")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if view.Status != models.SessionCompleted {
		t.Fatalf("expected timed-out completion on resume, got %s", view.Status)
	}
	if view.EndReason == nil || *view.EndReason != models.SessionEndReasonTimeout {
		t.Errorf("expected time_out end reason, got %v", view.EndReason)
	}

	// No further answers are accepted.
	err = svc.SubmitAnswer(ctx, "tok-test-1", &SubmitAnswerRequest{QuestionID: 101, Score: 3})
	if err != ErrSessionAlreadyCompleted {
		t.Errorf("expected ErrSessionAlreadyCompleted, got %v", err)
	}
}

func TestSessionService_ExpiredInvitation(t *testing.T) {
	repo := newMockRepository()
	svc, publisher := newTestSessionService(repo)
	session := seedSession(repo, models.SessionPending, intPtr(600))
	ctx := context.Background()

	repo.mu.Lock()
	repo.sessions[session.ID].ExpiresAt = time.Now().Add(-time.Hour)
	repo.mu.Unlock()

	view, err := svc.GetByToken(ctx, "tok-test-1")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if view.Status != models.SessionExpired {
		t.Fatalf("expected expired, got %s", view.Status)
	}

	if _, err := svc.Start(ctx, "tok-test-1"); err != ErrSessionExpired {
		t.Errorf("expected ErrSessionExpired on start, got %v", err)
	}

	var expired int
	for _, event := range publisher.GetPublishedEvents() {
		if event.Type == events.EventSessionExpired {
			expired++
		}
	}
	if expired != 1 {
		t.Errorf("expected one expired event, got %d", expired)
	}
}

func TestSessionService_SweepExpired_PublishesEvents(t *testing.T) {
	repo := newMockRepository()
	svc, publisher := newTestSessionService(repo)
	session := seedSession(repo, models.SessionPending, intPtr(600))
	ctx := context.Background()

	repo.mu.Lock()
	repo.sessions[session.ID].ExpiresAt = time.Now().Add(-time.Hour)
	repo.mu.Unlock()

	count, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 swept session, got %d", count)
	}

	// The bulk sweep carries the same per-session signal as the lazy
	// per-token expiry.
	published := publisher.GetPublishedEvents()
	if len(published) != 1 || published[0].Type != events.EventSessionExpired {
		t.Fatalf("expected one expired event from the sweep, got %+v", published)
	}

	// A clean follow-up run sweeps nothing and stays quiet.
	count, err = svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired (second): %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 on second sweep, got %d", count)
	}
	if got := len(publisher.GetPublishedEvents()); got != 1 {
		t.Errorf("second sweep published %d extra events", got-1)
	}
}

func TestSessionService_ExtendTime_RequiresTimeLimit(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestSessionService(repo)
	session := seedSession(repo, models.SessionInProgress, nil)
	seedUser(repo, "hr-1", models.RoleHRManager)

	req := &ExtendTimeRequest{AdditionalSeconds: 300}
	_, err := svc.ExtendTime(context.Background(), session.ID, req, "hr-1")
	if err != ErrTemplateHasNoTime {
		t.Fatalf("expected ErrTemplateHasNoTime, got %v", err)
	}
}

func TestSessionService_GetTimeRemaining(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestSessionService(repo)
	seedSession(repo, models.SessionInProgress, intPtr(600))

	resp, err := svc.GetTimeRemaining(context.Background(), "tok-test-1")
	if err != nil {
		t.Fatalf("GetTimeRemaining: %v", err)
	}
	if resp.TimeRemaining == nil || *resp.TimeRemaining <= 0 || *resp.TimeRemaining > 600 {
		t.Errorf("unexpected remaining: %v", resp.TimeRemaining)
	}
}

func TestSessionService_UntimedSession(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestSessionService(repo)
	seedSession(repo, models.SessionInProgress, nil)
	ctx := context.Background()

	resp, err := svc.GetTimeRemaining(ctx, "tok-test-1")
	if err != nil {
		t.Fatalf("GetTimeRemaining: %v", err)
	}
	if resp.TimeRemaining != nil {
		t.Errorf("untimed session reported remaining time: %v", *resp.TimeRemaining)
	}

	// Untimed sessions never time out on access.
	view, err := svc.GetByToken(ctx, "tok-test-1")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if view.Status != models.SessionInProgress {
		t.Errorf("expected in_progress, got %s", view.Status)
	}
}
