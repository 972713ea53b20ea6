package api

import (
	"context"
	"encoding/json"

	"drivebox/internal/config"
	"drivebox/internal/database"
	"drivebox/internal/hierarchy"
	"drivebox/internal/search"
	"drivebox/internal/sharing"
	"drivebox/internal/uploading"
	"drivebox/internal/websocket"

	"go.uber.org/zap"
)

type Server struct {
	config    *config.Config
	store     *database.Store
	hierarchy *hierarchy.Engine
	sharing   *sharing.Engine
	uploads   *uploading.Engine
	search    *search.Engine
	wsHub     *websocket.Hub
	log       *zap.Logger
}

func NewServer(
	cfg *config.Config,
	store *database.Store,
	hierarchyEngine *hierarchy.Engine,
	sharingEngine *sharing.Engine,
	uploadEngine *uploading.Engine,
	searchEngine *search.Engine,
	wsHub *websocket.Hub,
	log *zap.Logger,
) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		config:    cfg,
		store:     store,
		hierarchy: hierarchyEngine,
		sharing:   sharingEngine,
		uploads:   uploadEngine,
		search:    searchEngine,
		wsHub:     wsHub,
		log:       log,
	}
}

// publishEvent journals the event and pushes it to the account's open
// websocket connections. Best effort after the operation committed; a
// journaling failure is logged, never surfaced to the client.
func (s *Server) publishEvent(ctx context.Context, userID int64, eventType string, payload interface{}) {
	if err := s.store.LogEvent(ctx, userID, eventType, payload); err != nil {
		s.log.Warn("failed to journal event", zap.String("event_type", eventType), zap.Error(err))
		return
	}

	eventMsg := map[string]interface{}{"event_type": eventType, "payload": payload}
	eventBytes, err := json.Marshal(eventMsg)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	s.wsHub.PublishEvent(userID, eventBytes)
}
