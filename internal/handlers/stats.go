package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/observer-pro/observer-back/internal/service"
)

// StatsHandler はルームの診断情報と進捗統計をHTTPで提供します
type StatsHandler struct {
	svc *service.ClassroomService
}

func NewStatsHandler(s *service.ClassroomService) *StatsHandler { return &StatsHandler{svc: s} }

// RoomStats は GET /roomstats/{roomId} を処理します
func (h *StatsHandler) RoomStats(w http.ResponseWriter, r *http.Request) {
	roomID, err := parseRoomID(chi.URLParam(r, "roomId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := h.svc.RoomStats(roomID)
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		respondError(w, http.StatusNotFound, "room not found")
		return
	case errors.Is(err, service.ErrNoSteps):
		respondError(w, http.StatusNotFound, "room has no progress yet")
		return
	case err != nil:
		logrus.WithError(err).WithField("room_id", roomID).Error("room stats failed")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Rooms は GET /api/v1/rooms を処理します
func (h *StatsHandler) Rooms(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.RoomsLog())
}
