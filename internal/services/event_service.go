package services

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tradersage/bastion/internal/aegis"
	"github.com/tradersage/bastion/internal/logger"
	"github.com/tradersage/bastion/internal/models"
)

// Rejections at or above this risk score are forwarded to the notifier.
const notifyRiskThreshold = 60

// EventService persists engine rejections as SecurityEvent rows and forwards
// high-risk ones to the notifier. It implements aegis.EventSink.
type EventService struct {
	db       *gorm.DB
	notifier *NotifierService
	now      func() time.Time
	log      *logrus.Entry
}

// NewEventService returns an EventService writing to db. notifier may be nil.
func NewEventService(db *gorm.DB, notifier *NotifierService) *EventService {
	return &EventService{
		db:       db,
		notifier: notifier,
		now:      time.Now,
		log:      logger.WithComponent("events"),
	}
}

// Record implements aegis.EventSink. Persistence failures are logged, never
// propagated; the request path must not fail on audit trouble.
func (s *EventService) Record(ev aegis.EventRecord) {
	event := &models.SecurityEvent{
		UUID:       uuid.NewString(),
		Source:     ev.Source,
		Action:     ev.Action,
		Identifier: ev.Identifier,
		Context:    ev.Context,
		Threats:    strings.Join(ev.Threats, ","),
		RiskScore:  ev.RiskScore,
		Details:    ev.Details,
		CreatedAt:  s.now(),
	}
	if err := s.db.Create(event).Error; err != nil {
		s.log.WithError(err).Error("persist security event")
		return
	}
	if s.notifier != nil && ev.RiskScore >= notifyRiskThreshold {
		s.notifier.SecurityAlert(ev)
	}
}

// List returns recent security events, newest first.
func (s *EventService) List(limit int) ([]models.SecurityEvent, error) {
	var events []models.SecurityEvent
	q := s.db.Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListBySource returns recent events from one subsystem, newest first.
func (s *EventService) ListBySource(source string, limit int) ([]models.SecurityEvent, error) {
	var events []models.SecurityEvent
	q := s.db.Where("source = ?", source).Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// CountSince returns the number of events recorded at or after the cutoff.
func (s *EventService) CountSince(cutoff time.Time) (int64, error) {
	var n int64
	err := s.db.Model(&models.SecurityEvent{}).Where("created_at >= ?", cutoff).Count(&n).Error
	return n, err
}
