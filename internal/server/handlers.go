package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meltforce/heromissions/internal/pose"
	"github.com/meltforce/heromissions/internal/session"
	"github.com/meltforce/heromissions/internal/storage"
)

type startMissionRequest struct {
	Exercise string `json:"exercise"`
}

type classifyRequest struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence"`
}

type landmarksRequest struct {
	Landmarks []pose.Landmark `json:"landmarks"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.missions.Catalog().List())
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	ex, ok := s.missions.Catalog().Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "exercise not found"})
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) handleStartMission(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}

	var req startMissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.Exercise == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise is required"})
		return
	}

	st, err := s.missions.Start(r.Context(), uid, req.Exercise)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// ownedMission parses the {id} param and checks the mission belongs to the caller.
func (s *Server) ownedMission(w http.ResponseWriter, r *http.Request) (*session.Status, bool) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid mission ID"})
		return nil, false
	}
	st, err := s.missions.Status(id)
	if err != nil || st.UserID != uid {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "mission not found"})
		return nil, false
	}
	return st, true
}

func (s *Server) handleMissionStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := s.ownedMission(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	st, ok := s.ownedMission(w, r)
	if !ok {
		return
	}

	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.Confidence == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "confidence is required"})
		return
	}

	step, err := s.missions.Classify(r.Context(), st.ID, req.Label, *req.Confidence)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) handleLandmarks(w http.ResponseWriter, r *http.Request) {
	st, ok := s.ownedMission(w, r)
	if !ok {
		return
	}

	var req landmarksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	step, err := s.missions.SubmitLandmarks(r.Context(), st.ID, req.Landmarks)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) handleEndMission(w http.ResponseWriter, r *http.Request) {
	st, ok := s.ownedMission(w, r)
	if !ok {
		return
	}
	res, err := s.missions.End(r.Context(), st.ID)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrUnknownExercise):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, session.ErrEnded):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, session.ErrNoClassifier):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, pose.ErrLandmarkCount):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		s.log.Error("mission error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// historyStore returns the store, writing 503 when history is disabled.
func (s *Server) historyStore(w http.ResponseWriter) (Store, bool) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "mission history is disabled"})
		return nil, false
	}
	return s.store, true
}

func (s *Server) handleQueryHistory(w http.ResponseWriter, r *http.Request) {
	store, ok := s.historyStore(w)
	if !ok {
		return
	}
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}

	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	missions, err := store.QueryMissions(r.Context(), start, end, uid, r.URL.Query().Get("exercise"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, missions)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	store, ok := s.historyStore(w)
	if !ok {
		return
	}
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid mission ID"})
		return
	}

	m, err := store.GetMission(r.Context(), id, uid)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "mission not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	store, ok := s.historyStore(w)
	if !ok {
		return
	}
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	stats, err := store.GetMissionStats(r.Context(), uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" {
		// Default: last 30 days
		end = time.Now()
		start = end.AddDate(0, 0, -30)
		return
	}

	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	if endStr == "" {
		end = time.Now()
	} else {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.Parse("2006-01-02", endStr)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			// End of day for date-only
			end = end.Add(24 * time.Hour)
		}
	}
	return
}
