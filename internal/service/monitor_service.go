package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/examgate/examgate-backend/internal/config"
)

// MonitorEventType classifies live session events.
type MonitorEventType string

const (
	MonitorEventAttemptStarted   MonitorEventType = "attempt_started"
	MonitorEventAttemptSubmitted MonitorEventType = "attempt_submitted"
	MonitorEventAttemptLocked    MonitorEventType = "attempt_locked"
	MonitorEventViolation        MonitorEventType = "violation"
)

// MonitorEvent is one live update pushed to proctors watching a session.
type MonitorEvent struct {
	Type      MonitorEventType `json:"type"`
	SessionID uuid.UUID        `json:"session_id"`
	AttemptID uuid.UUID        `json:"attempt_id"`
	StudentID int              `json:"student_id,omitempty"`
	Detail    string           `json:"detail,omitempty"`
	At        time.Time        `json:"at"`
}

// MonitorService fans live session events out through Redis pub/sub. Any
// server instance can publish; proctor websockets subscribe on whichever
// instance they landed on.
type MonitorService struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(rdb *redis.Client, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		rdb: rdb,
		log: log.With().Str("component", "monitor_service").Logger(),
	}
}

// Publish sends an event to the session's channel. Delivery is best
// effort: the durable record lives in Postgres, the channel only feeds
// live dashboards, so a publish failure is logged and swallowed.
func (s *MonitorService) Publish(ctx context.Context, event MonitorEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal monitor event")
		return
	}
	channel := config.CacheKey.SessionMonitorChannel(event.SessionID.String())
	if err := s.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("channel", channel).Msg("publish monitor event failed")
	}
}

// Subscribe opens a subscription to one session's event stream. The caller
// owns the returned PubSub and must Close it.
func (s *MonitorService) Subscribe(ctx context.Context, sessionID uuid.UUID) *redis.PubSub {
	channel := config.CacheKey.SessionMonitorChannel(sessionID.String())
	return s.rdb.Subscribe(ctx, channel)
}
