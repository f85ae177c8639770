package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"go.mongodb.org/mongo-driver/v2/bson"

	"mistake-service/internal/models"
)

type fakeMistakeStore struct {
	mu       sync.Mutex
	byID     map[bson.ObjectID]*models.Mistake
	order    []bson.ObjectID
	failWith error
	// number of upserts allowed before failWith kicks in; negative means always fail
	failAfter int
	upserts   int
	conflicts int
	lastLimit int
}

func newFakeMistakeStore() *fakeMistakeStore {
	return &fakeMistakeStore{byID: map[bson.ObjectID]*models.Mistake{}, failAfter: -1}
}

func clone(m *models.Mistake) *models.Mistake {
	c := *m
	if m.LastPracticed != nil {
		t := *m.LastPracticed
		c.LastPracticed = &t
	}
	if m.SituationContext != nil {
		sc := *m.SituationContext
		c.SituationContext = &sc
	}
	return &c
}

func (s *fakeMistakeStore) failing() error {
	if s.failWith == nil {
		return nil
	}
	return s.failWith
}

func (s *fakeMistakeStore) UpsertBySignature(_ context.Context, sig models.Signature, occ models.Occurrence, now time.Time) (bson.ObjectID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil && (s.failAfter < 0 || s.upserts >= s.failAfter) {
		return bson.NilObjectID, false, s.failWith
	}
	s.upserts++

	for _, id := range s.order {
		m := s.byID[id]
		if m.UserID == sig.UserID && m.Signature == sig.Key {
			m.Frequency++
			m.Explanation = occ.Explanation
			m.Context = occ.Context
			m.SituationContext = occ.SituationContext
			if occ.ExampleUsage != "" {
				m.ExampleUsage = occ.ExampleUsage
			}
			if occ.Severity > 0 {
				m.Severity = occ.Severity
			}
			m.LastOccurred = now
			m.UpdatedAt = now
			return id, false, nil
		}
	}

	m := &models.Mistake{
		ID:               bson.NewObjectID(),
		UserID:           sig.UserID,
		Type:             sig.Type,
		OriginalText:     sig.OriginalText,
		Correction:       sig.Correction,
		Explanation:      occ.Explanation,
		Context:          occ.Context,
		SituationContext: occ.SituationContext,
		ExampleUsage:     occ.ExampleUsage,
		Severity:         occ.Severity,
		Signature:        sig.Key,
		Status:           models.MistakeStatusNew,
		InDrillQueue:     true,
		NextPracticeDate: now,
		Frequency:        1,
		CreatedAt:        now,
		LastOccurred:     now,
		UpdatedAt:        now,
	}
	s.byID[m.ID] = m
	s.order = append(s.order, m.ID)
	return m.ID, true, nil
}

// put inserts a mistake directly, bypassing ingestion
func (s *fakeMistakeStore) put(m models.Mistake) bson.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID.IsZero() {
		m.ID = bson.NewObjectID()
	}
	s.byID[m.ID] = clone(&m)
	s.order = append(s.order, m.ID)
	return m.ID
}

func (s *fakeMistakeStore) get(id bson.ObjectID) *models.Mistake {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return nil
	}
	return clone(m)
}

func (s *fakeMistakeStore) all() []models.Mistake {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Mistake, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *clone(s.byID[id]))
	}
	return out
}

func (s *fakeMistakeStore) FindByID(_ context.Context, id bson.ObjectID) (*models.Mistake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing(); err != nil {
		return nil, err
	}
	m, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: mistakes", models.ErrNotFound)
	}
	return clone(m), nil
}

func (s *fakeMistakeStore) FindDue(_ context.Context, userID string, now time.Time, limit int) ([]models.Mistake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing(); err != nil {
		return nil, err
	}
	s.lastLimit = limit

	var due []models.Mistake
	for _, id := range s.order {
		m := s.byID[id]
		if m.UserID == userID && m.InDrillQueue && !m.NextPracticeDate.After(now) {
			due = append(due, *clone(m))
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].NextPracticeDate.Before(due[j].NextPracticeDate)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func matches(m *models.Mistake, f models.MistakeFilter) bool {
	if f.UserID != "" && m.UserID != f.UserID {
		return false
	}
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	if f.StatusNot != "" && m.Status == f.StatusNot {
		return false
	}
	if f.Type != "" && m.Type != f.Type {
		return false
	}
	if f.NextPracticeDateLTE != nil && m.NextPracticeDate.After(*f.NextPracticeDateLTE) {
		return false
	}
	return true
}

func (s *fakeMistakeStore) Count(_ context.Context, filter models.MistakeFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing(); err != nil {
		return 0, err
	}
	var n int64
	for _, m := range s.byID {
		if matches(m, filter) {
			n++
		}
	}
	return n, nil
}

func (s *fakeMistakeStore) Update(_ context.Context, id bson.ObjectID, expectedPracticeCount int, update models.PracticeUpdate) (*models.Mistake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing(); err != nil {
		return nil, err
	}
	m, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: mistakes", models.ErrNotFound)
	}
	if s.conflicts > 0 {
		s.conflicts--
		return nil, fmt.Errorf("%w: injected", models.ErrConflict)
	}
	if m.PracticeCount != expectedPracticeCount {
		return nil, fmt.Errorf("%w: stale practice count", models.ErrConflict)
	}

	st := update.State
	m.Status = st.Status
	m.ConfidenceLevel = st.ConfidenceLevel
	m.InDrillQueue = st.InDrillQueue
	m.NextPracticeDate = st.NextPracticeDate
	m.PracticeCount = st.PracticeCount
	m.ConsecutiveCorrect = st.ConsecutiveCorrect
	m.LastPracticed = st.LastPracticed
	if update.LastAnswer != "" {
		m.LastAnswer = update.LastAnswer
	}
	m.UpdatedAt = update.UpdatedAt
	return clone(m), nil
}

func (s *fakeMistakeStore) List(_ context.Context, filter models.MistakeFilter, limit int) ([]models.Mistake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing(); err != nil {
		return nil, err
	}
	s.lastLimit = limit

	var out []models.Mistake
	for i := len(s.order) - 1; i >= 0; i-- {
		m := s.byID[s.order[i]]
		if matches(m, filter) {
			out = append(out, *clone(m))
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[bson.ObjectID]*models.PracticeSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[bson.ObjectID]*models.PracticeSession{}}
}

func (s *fakeSessionStore) Create(_ context.Context, session *models.PracticeSession) (*models.PracticeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.ID.IsZero() {
		session.ID = bson.NewObjectID()
	}
	stored := *session
	s.sessions[session.ID] = &stored
	return session, nil
}

func (s *fakeSessionStore) Complete(_ context.Context, id bson.ObjectID, userID string, at time.Time) (*models.PracticeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || session.UserID != userID {
		return nil, fmt.Errorf("%w: practice session", models.ErrNotFound)
	}
	if session.IsCompleted() {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionCompleted, id.Hex())
	}
	completed := at
	session.CompletedAt = &completed
	out := *session
	return &out, nil
}

func (s *fakeSessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

type fakePublisher struct {
	mu       sync.Mutex
	mistakes []models.MistakeEvent
	sessions []models.SessionEvent
	err      error
}

func (p *fakePublisher) PublishMistakeEvent(_ context.Context, event *models.MistakeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mistakes = append(p.mistakes, *event)
	return p.err
}

func (p *fakePublisher) PublishSessionEvent(_ context.Context, event *models.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = append(p.sessions, *event)
	return p.err
}

func (p *fakePublisher) mistakeEventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.mistakes))
	for _, e := range p.mistakes {
		types = append(types, e.EventType)
	}
	return types
}

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type trackerFixture struct {
	tracker   *MistakeTracker
	store     *fakeMistakeStore
	publisher *fakePublisher
	clock     *fixedClock
	logs      *logtest.Hook
}

func newTrackerFixture(t *testing.T, cfg TrackerConfig) *trackerFixture {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &trackerFixture{
		store:     newFakeMistakeStore(),
		publisher: &fakePublisher{},
		clock:     &fixedClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)},
		logs:      hook,
	}
	f.tracker = NewMistakeTracker(f.store, f.publisher, cfg, logger, WithClock(f.clock.Now))
	return f
}
