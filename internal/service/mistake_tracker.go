package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/errgroup"

	"mistake-service/internal/metrics"
	"mistake-service/internal/models"
	"mistake-service/internal/schedule"
)

const (
	DefaultDueLimit = 5
	MaxDueLimit     = 100

	maxPracticeAttempts = 3
)

const UnmasteredFilter = "unmastered"

type TrackerConfig struct {
	SignatureMode string
	DefaultLimit  int
	MaxLimit      int
}

// MistakeTracker ingests, schedules and reports on a user's mistakes.
// It keeps no mutable state; all coordination happens in the store.
type MistakeTracker struct {
	store     MistakeStore
	publisher EventPublisher
	validate  *validator.Validate
	log       logrus.FieldLogger
	cfg       TrackerConfig
	clock     func() time.Time
}

type TrackerOption func(*MistakeTracker)

// WithClock overrides the time source
func WithClock(clock func() time.Time) TrackerOption {
	return func(t *MistakeTracker) { t.clock = clock }
}

func NewMistakeTracker(store MistakeStore, publisher EventPublisher, cfg TrackerConfig, log logrus.FieldLogger, opts ...TrackerOption) *MistakeTracker {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultDueLimit
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = max(MaxDueLimit, cfg.DefaultLimit)
	}
	if cfg.SignatureMode == "" {
		cfg.SignatureMode = SignatureModeExact
	}

	t := &MistakeTracker{
		store:     store,
		publisher: publisher,
		validate:  newValidator(),
		log:       log.WithField("component", "mistake_tracker"),
		cfg:       cfg,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (t *MistakeTracker) now() time.Time {
	return t.clock().UTC()
}

// RecordMistakes stores or refreshes each candidate for the user. Invalid candidates are
// skipped and reported; a store failure stops the batch and returns what was done so far.
func (t *MistakeTracker) RecordMistakes(ctx context.Context, userID string, candidates []models.CandidateMistake) (models.RecordResult, error) {
	result := models.RecordResult{Skipped: []models.SkippedCandidate{}}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return result, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}

	now := t.now()
	ids := make([]string, 0, len(candidates))

	for i, raw := range candidates {
		candidate := normalizeCandidate(raw)
		if err := t.validate.Struct(candidate); err != nil {
			reason := validationReason(err)
			t.log.WithFields(logrus.Fields{"user_id": userID, "index": i, "reason": reason}).Warn("skipping invalid candidate mistake")
			result.Skipped = append(result.Skipped, models.SkippedCandidate{Index: i, Reason: reason})
			metrics.MistakesRecorded.WithLabelValues("skipped").Inc()
			continue
		}

		sig := models.Signature{
			UserID:       userID,
			Type:         candidate.Type,
			OriginalText: candidate.OriginalText,
			Correction:   candidate.Correction,
			Key:          signatureKey(t.cfg.SignatureMode, candidate.Type, candidate.OriginalText, candidate.Correction),
		}
		occ := models.Occurrence{
			Explanation:      candidate.Explanation,
			Context:          candidate.Context,
			SituationContext: candidate.SituationContext,
			ExampleUsage:     candidate.ExampleUsage,
			Severity:         candidate.Severity,
		}

		id, created, err := t.store.UpsertBySignature(ctx, sig, occ, now)
		if err != nil {
			t.publishRecorded(ctx, userID, ids, result)
			return result, fmt.Errorf("record candidate %d: %w", i, asStoreError(err))
		}

		result.Processed++
		if created {
			result.Created++
			metrics.MistakesRecorded.WithLabelValues("created").Inc()
		} else {
			result.Updated++
			metrics.MistakesRecorded.WithLabelValues("updated").Inc()
		}
		ids = append(ids, id.Hex())
	}

	t.publishRecorded(ctx, userID, ids, result)
	return result, nil
}

func normalizeCandidate(c models.CandidateMistake) models.CandidateMistake {
	c.Type = models.MistakeType(strings.ToUpper(strings.TrimSpace(string(c.Type))))
	c.OriginalText = strings.TrimSpace(c.OriginalText)
	c.Correction = strings.TrimSpace(c.Correction)
	c.Explanation = strings.TrimSpace(c.Explanation)
	c.Context = strings.TrimSpace(c.Context)
	c.ExampleUsage = strings.TrimSpace(c.ExampleUsage)
	return c
}

func validationReason(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	return strings.Join(lo.Map(verrs, func(fe validator.FieldError, _ int) string {
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}), "; ")
}

func (t *MistakeTracker) publishRecorded(ctx context.Context, userID string, ids []string, result models.RecordResult) {
	if result.Processed == 0 {
		return
	}
	t.publishMistake(ctx, &models.MistakeEvent{
		EventType:  models.EventTypeMistakesRecorded,
		UserID:     userID,
		MistakeIDs: lo.Uniq(ids),
		Created:    result.Created,
		Updated:    result.Updated,
	})
}

// RecordPracticeResult applies one practice attempt. When userID is not empty the
// mistake must belong to that user. Concurrent attempts on the same mistake are
// serialised by retrying against the latest practice_count.
func (t *MistakeTracker) RecordPracticeResult(ctx context.Context, userID, mistakeID string, success bool, userAnswer string) (*models.PracticeOutcome, error) {
	id, err := bson.ObjectIDFromHex(mistakeID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid mistake id %q", models.ErrValidation, mistakeID)
	}

	for attempt := 1; attempt <= maxPracticeAttempts; attempt++ {
		mistake, err := t.store.FindByID(ctx, id)
		if err != nil {
			return nil, asStoreError(err)
		}
		if userID != "" && mistake.UserID != userID {
			return nil, fmt.Errorf("%w: mistake %s", models.ErrNotFound, mistakeID)
		}

		now := t.now()
		wasMastered := mistake.Status == models.MistakeStatusMastered
		next := schedule.ApplyPractice(mistake.PracticeState(), success, now)

		updated, err := t.store.Update(ctx, id, mistake.PracticeCount, models.PracticeUpdate{
			State:      next,
			LastAnswer: userAnswer,
			UpdatedAt:  now,
		})
		if errors.Is(err, models.ErrConflict) {
			metrics.PracticeConflicts.Inc()
			t.log.WithFields(logrus.Fields{"mistake_id": mistakeID, "attempt": attempt}).Debug("practice update conflicted, retrying")
			continue
		}
		if err != nil {
			return nil, asStoreError(err)
		}

		mastered := !wasMastered && updated.Status == models.MistakeStatusMastered
		t.recordPracticeMetrics(success, mastered)
		t.publishPractice(ctx, updated, success, mastered)

		return &models.PracticeOutcome{
			Mistake:  updated,
			Feedback: practiceFeedback(updated, success),
			Mastered: updated.Status == models.MistakeStatusMastered,
		}, nil
	}

	return nil, fmt.Errorf("%w: mistake %s changed during %d attempts", models.ErrConflict, mistakeID, maxPracticeAttempts)
}

func (t *MistakeTracker) recordPracticeMetrics(success, mastered bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	metrics.PracticeAttempts.WithLabelValues(outcome).Inc()
	if mastered {
		metrics.MistakesMastered.Inc()
	}
}

func (t *MistakeTracker) publishPractice(ctx context.Context, m *models.Mistake, success, mastered bool) {
	next := m.NextPracticeDate
	practiced := &models.MistakeEvent{
		EventType:          models.EventTypeMistakePracticed,
		UserID:             m.UserID,
		MistakeIDs:         []string{m.ID.Hex()},
		Success:            &success,
		Status:             m.Status,
		PracticeCount:      m.PracticeCount,
		ConsecutiveCorrect: m.ConsecutiveCorrect,
		NextPracticeDate:   &next,
	}
	t.publishMistake(ctx, practiced)

	if mastered {
		masteredEvent := *practiced
		masteredEvent.EventType = models.EventTypeMistakeMastered
		masteredEvent.NextPracticeDate = nil
		t.publishMistake(ctx, &masteredEvent)
	}
}

// GetDueMistakes returns up to limit drill items due now, most overdue first
func (t *MistakeTracker) GetDueMistakes(ctx context.Context, userID string, limit int) ([]models.PracticeItem, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}

	now := t.now()
	mistakes, err := t.store.FindDue(ctx, userID, now, t.clampLimit(limit))
	if err != nil {
		return nil, asStoreError(err)
	}

	due := lo.Filter(mistakes, func(m models.Mistake, _ int) bool {
		return m.InDrillQueue && !m.NextPracticeDate.After(now)
	})
	return lo.Map(due, func(m models.Mistake, _ int) models.PracticeItem {
		return models.PracticeItem{Mistake: m, PracticePrompt: practicePrompt(&m)}
	}), nil
}

func (t *MistakeTracker) clampLimit(limit int) int {
	if limit <= 0 {
		return t.cfg.DefaultLimit
	}
	return min(limit, t.cfg.MaxLimit)
}

// GetStatistics aggregates the user's mistakes as of now
func (t *MistakeTracker) GetStatistics(ctx context.Context, userID string) (*models.MistakeStatistics, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}

	now := t.now()
	var total, mastered, learning, fresh, grammar, vocabulary, due int64

	counts := []struct {
		dst    *int64
		filter models.MistakeFilter
	}{
		{&total, models.MistakeFilter{UserID: userID}},
		{&mastered, models.MistakeFilter{UserID: userID, Status: models.MistakeStatusMastered}},
		{&learning, models.MistakeFilter{UserID: userID, Status: models.MistakeStatusLearning}},
		{&fresh, models.MistakeFilter{UserID: userID, Status: models.MistakeStatusNew}},
		{&grammar, models.MistakeFilter{UserID: userID, Type: models.MistakeTypeGrammar}},
		{&vocabulary, models.MistakeFilter{UserID: userID, Type: models.MistakeTypeVocabulary}},
		{&due, models.MistakeFilter{UserID: userID, StatusNot: models.MistakeStatusMastered, NextPracticeDateLTE: &now}},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range counts {
		g.Go(func() error {
			n, err := t.store.Count(gctx, c.filter)
			if err != nil {
				return err
			}
			*c.dst = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, asStoreError(err)
	}

	return &models.MistakeStatistics{
		TotalCount:    total,
		MasteredCount: mastered,
		LearningCount: learning,
		NewCount:      fresh,
		TypeDistribution: map[models.MistakeType]int64{
			models.MistakeTypeGrammar:    grammar,
			models.MistakeTypeVocabulary: vocabulary,
		},
		DueForPractice:    due,
		MasteryPercentage: models.MasteryPercentage(mastered, total),
	}, nil
}

// ListMistakes lists the user's mistakes newest first. status may be empty,
// a mistake status, or "unmastered".
func (t *MistakeTracker) ListMistakes(ctx context.Context, userID, status string) ([]models.Mistake, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}

	filter := models.MistakeFilter{UserID: userID}
	switch s := strings.TrimSpace(status); {
	case s == "":
	case strings.EqualFold(s, UnmasteredFilter):
		filter.StatusNot = models.MistakeStatusMastered
	case models.MistakeStatus(strings.ToUpper(s)).IsValid():
		filter.Status = models.MistakeStatus(strings.ToUpper(s))
	default:
		return nil, fmt.Errorf("%w: unknown status filter %q", models.ErrValidation, status)
	}

	mistakes, err := t.store.List(ctx, filter, t.cfg.MaxLimit)
	if err != nil {
		return nil, asStoreError(err)
	}
	return mistakes, nil
}

func (t *MistakeTracker) publishMistake(ctx context.Context, event *models.MistakeEvent) {
	if t.publisher == nil {
		return
	}
	event.EventID = uuid.NewString()
	event.Timestamp = t.now().Unix()
	if err := t.publisher.PublishMistakeEvent(ctx, event); err != nil {
		t.log.WithError(err).WithField("event_type", event.EventType).Warn("failed to publish mistake event")
	}
}

// asStoreError keeps known error kinds and classifies anything else as a store failure
func asStoreError(err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrSessionCompleted),
		errors.Is(err, models.ErrNothingDue),
		errors.Is(err, models.ErrStoreUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
}
