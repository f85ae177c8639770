package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"

	"mistake-service/internal/models"
)

type PracticeSessionService struct {
	tracker   *MistakeTracker
	sessions  SessionStore
	publisher EventPublisher
	log       logrus.FieldLogger
	clock     func() time.Time
}

func NewPracticeSessionService(tracker *MistakeTracker, sessions SessionStore, publisher EventPublisher, log logrus.FieldLogger) *PracticeSessionService {
	return &PracticeSessionService{
		tracker:   tracker,
		sessions:  sessions,
		publisher: publisher,
		log:       log.WithField("component", "practice_sessions"),
		clock:     tracker.clock,
	}
}

// StartSession bundles the currently due mistakes into a new session.
// Nothing is stored when no mistake is due.
func (s *PracticeSessionService) StartSession(ctx context.Context, userID string, limit int) (*models.StartedSession, error) {
	items, err := s.tracker.GetDueMistakes(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: user %s", models.ErrNothingDue, userID)
	}

	now := s.clock().UTC()
	session, err := s.sessions.Create(ctx, &models.PracticeSession{
		UserID: userID,
		MistakeIDs: lo.Map(items, func(item models.PracticeItem, _ int) bson.ObjectID {
			return item.ID
		}),
		StartedAt: now,
		CreatedAt: now,
	})
	if err != nil {
		return nil, asStoreError(err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": session.ID.Hex(),
		"items":      len(items),
	}).Info("practice session started")

	return &models.StartedSession{Session: session, Items: items}, nil
}

// CompleteSession marks the user's session completed. A session can be completed once.
func (s *PracticeSessionService) CompleteSession(ctx context.Context, userID, sessionID string) (*models.PracticeSession, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	id, err := bson.ObjectIDFromHex(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid session id %q", models.ErrValidation, sessionID)
	}

	session, err := s.sessions.Complete(ctx, id, userID, s.clock().UTC())
	if err != nil {
		return nil, asStoreError(err)
	}

	s.publishCompleted(ctx, session)
	return session, nil
}

func (s *PracticeSessionService) publishCompleted(ctx context.Context, session *models.PracticeSession) {
	if s.publisher == nil {
		return
	}
	event := &models.SessionEvent{
		EventID:   uuid.NewString(),
		EventType: models.EventTypeSessionCompleted,
		SessionID: session.ID.Hex(),
		UserID:    session.UserID,
		MistakeIDs: lo.Map(session.MistakeIDs, func(id bson.ObjectID, _ int) string {
			return id.Hex()
		}),
		StartedAt:   session.StartedAt,
		CompletedAt: session.CompletedAt,
		Timestamp:   s.clock().Unix(),
	}
	if err := s.publisher.PublishSessionEvent(ctx, event); err != nil {
		s.log.WithError(err).WithField("session_id", event.SessionID).Warn("failed to publish session event")
	}
}
