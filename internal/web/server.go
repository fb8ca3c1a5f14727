package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/example/resy-sniper/internal/activity"
	"github.com/example/resy-sniper/internal/auth"
	"github.com/example/resy-sniper/internal/db"
	"github.com/example/resy-sniper/internal/monitor"
	"github.com/example/resy-sniper/internal/resy"
	"github.com/example/resy-sniper/internal/settings"
	"github.com/example/resy-sniper/internal/slots"
	"github.com/example/resy-sniper/internal/watches"
)

const (
	activityLimit = 100
	foundLimit    = 50
)

// Server is the JSON API over the stores and the monitor control surface.
type Server struct {
	Auth     *auth.Store
	Watches  *watches.Repo
	Slots    *slots.Repo
	Activity *activity.Repo
	Settings *settings.Repo
	Resy     *resy.Client
	Monitor  *monitor.Monitor
	Log      zerolog.Logger

	validate *validator.Validate
}

func (s *Server) Routes() http.Handler {
	s.validate = validator.New()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/watches", s.handleWatchList)
	api.HandleFunc("POST /api/watches", s.handleWatchCreate)
	api.HandleFunc("PUT /api/watches/{id}", s.handleWatchUpdate)
	api.HandleFunc("DELETE /api/watches/{id}", s.handleWatchDelete)

	api.HandleFunc("GET /api/activity", s.handleActivityList)
	api.HandleFunc("DELETE /api/activity", s.handleActivityClear)
	api.HandleFunc("GET /api/found", s.handleFoundList)

	api.HandleFunc("GET /api/settings", s.handleSettingsGet)
	api.HandleFunc("POST /api/settings", s.handleSettingsSet)

	api.HandleFunc("GET /api/monitor/status", s.handleMonitorStatus)
	api.HandleFunc("POST /api/monitor/start", s.handleMonitorStart)
	api.HandleFunc("POST /api/monitor/stop", s.handleMonitorStop)
	api.HandleFunc("POST /api/check", s.handleCheck)

	api.HandleFunc("GET /api/search", s.handleSearch)
	api.HandleFunc("GET /api/venue/{id}", s.handleVenue)

	mux.Handle("/api/", s.Auth.RequireAuth(api))

	return mux
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.Auth.Authenticate(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		s.jsonError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials)
		return
	}
	if err := s.Auth.SetSession(w, r, id); err != nil {
		s.jsonError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- watches ---

type watchPayload struct {
	VenueID      string `json:"venue_id" validate:"required"`
	VenueName    string `json:"venue_name"`
	PartySize    int    `json:"party_size" validate:"omitempty,min=1,max=20"`
	DateStart    string `json:"date_start" validate:"required,datetime=2006-01-02"`
	DateEnd      string `json:"date_end" validate:"omitempty,datetime=2006-01-02"`
	TimeEarliest string `json:"time_earliest" validate:"omitempty,datetime=15:04"`
	TimeLatest   string `json:"time_latest" validate:"omitempty,datetime=15:04"`
	SnipeMode    bool   `json:"snipe_mode"`
}

func (p watchPayload) toWatch() watches.Watch {
	w := watches.Watch{
		VenueID:      strings.TrimSpace(p.VenueID),
		VenueName:    strings.TrimSpace(p.VenueName),
		PartySize:    p.PartySize,
		DateStart:    p.DateStart,
		DateEnd:      p.DateEnd,
		TimeEarliest: p.TimeEarliest,
		TimeLatest:   p.TimeLatest,
		SnipeMode:    p.SnipeMode,
		Active:       true,
	}
	if w.PartySize == 0 {
		w.PartySize = 2
	}
	if w.TimeEarliest == "" {
		w.TimeEarliest = "17:00"
	}
	if w.TimeLatest == "" {
		w.TimeLatest = "22:00"
	}
	return w
}

func (s *Server) handleWatchList(w http.ResponseWriter, r *http.Request) {
	ws, err := s.Watches.List(r.Context())
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, err)
		return
	}
	if ws == nil {
		ws = []watches.Watch{}
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleWatchCreate(w http.ResponseWriter, r *http.Request) {
	var p watchPayload
	if err := readJSON(r, &p); err != nil {
		s.jsonError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.validate.Struct(p); err != nil {
		s.jsonError(w, http.StatusBadRequest, err)
		return
	}
	nw := p.toWatch()
	if err := nw.Validate(); err != nil {
		s.jsonError(w, http.StatusBadRequest, err)
		return
	}

	id, err := s.Watches.Create(r.Context(), nw)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, err)
		return
	}

	name := nw.VenueName
	if name == "" {
		name = nw.VenueID
	}
	if err := s.Activity.Append(r.Context(), &id, activity.KindWatch, "Added watch: "+name, nil); err != nil {
		s.Log.Error().Err(err).Msg("append watch event")
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

type watchUpdate struct {
	PartySize    *int    `json:"party_size" validate:"omitnil,min=1,max=20"`
	DateStart    *string `json:"date_start" validate:"omitempty,datetime=2006-01-02"`
	DateEnd      *string `json:"date_end" validate:"omitempty,datetime=2006-01-02"`
	TimeEarliest *string `json:"time_earliest" validate:"omitempty,datetime=15:04"`
	TimeLatest   *string `json:"time_latest" validate:"omitempty,datetime=15:04"`
	SnipeMode    *bool   `json:"snipe_mode"`
	Active       *bool   `json:"active"`
}

func (s *Server) handleWatchUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, errors.New("invalid watch id"))
		return
	}
	var u watchUpdate
	if err := readJSON(r, &u); err != nil {
		s.jsonError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.validate.Struct(u); err != nil {
		s.jsonError(w, http.StatusBadRequest, err)
		return
	}

	cur, err := s.Watches.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.jsonError(w, http.StatusNotFound, err)
			return
		}
		s.jsonError(w, http.StatusInternalServerError, err)
		return
	}

	if u.PartySize != nil {
		cur.PartySize = *u.PartySize
	}
	if u.DateStart != nil {
		cur.DateStart = *u.DateStart
	}
	if u.DateEnd != nil {
		cur.DateEnd = *u.DateEnd
	}
	if u.TimeEarliest != nil {
		cur.TimeEarliest = *u.TimeEarliest
	}
	if u.TimeLatest != nil {
		cur.TimeLatest = *u.TimeLatest
	}
	if u.SnipeMode != nil {
		cur.SnipeMode = *u.SnipeMode
	}
	if u.Active != nil {
		cur.Active = *u.Active
	}
	if err := cur.Validate(); err != nil {
		s.jsonError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.Watches.Update(r.Context(), cur); err != nil {
		s.jsonError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleWatchDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, errors.New("invalid watch id"))
		return
	}
	if err := s.Watches.Delete(r.Context(), id); err != nil {
		s.jsonError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- activity / found ---

func (s *Server) handleActivityList(w http.ResponseWriter, r *http.Request) {
	evs, err := s.Activity.Recent(r.Context(), activityLimit)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, err)
		return
	}
	if evs == nil {
		evs = []activity.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func (s *Server) handleActivityClear(w http.ResponseWriter, r *http.Request) {
	if err := s.Activity.Clear(r.Context()); err != nil {
		s.jsonError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleFoundList(w http.ResponseWriter, r *http.Request) {
	fs, err := s.Slots.Recent(r.Context(), foundLimit)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, err)
		return
	}
	if fs == nil {
		fs = []slots.FoundSlot{}
	}
	writeJSON(w, http.StatusOK, fs)
}

// --- settings ---

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	all, err := s.Settings.All(r.Context())
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, err)
		return
	}
	masked := map[string]string{}
	for k, v := range all {
		if k == settings.KeyAPIKey || k == settings.KeyAuthToken {
			masked[k] = maskSecret(v)
			continue
		}
		masked[k] = v
	}
	writeJSON(w, http.StatusOK, masked)
}

func (s *Server) handleSettingsSet(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := readJSON(r, &body); err != nil {
		s.jsonError(w, http.StatusBadRequest, err)
		return
	}
	for k, v := range body {
		if err := s.Settings.Set(r.Context(), k, v); err != nil {
			s.jsonError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 12 {
		return "***"
	}
	return v[:8] + "..." + v[len(v)-4:]
}

// --- monitor control ---

func (s *Server) handleMonitorStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Monitor.Status()
	writeJSON(w, http.StatusOK, map[string]any{"state": st, "running": st == monitor.StateRunning})
}

func (s *Server) handleMonitorStart(w http.ResponseWriter, r *http.Request) {
	// the monitor outlives the request; it runs on the server's base context
	s.Monitor.Start(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"running": true})
}

func (s *Server) handleMonitorStop(w http.ResponseWriter, r *http.Request) {
	s.Monitor.Stop(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"running": false})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	s.Monitor.TriggerScan(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Check triggered"})
}

// --- venue search proxy ---

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.jsonError(w, http.StatusBadRequest, errors.New("missing query"))
		return
	}
	st, err := s.Settings.Load(r.Context())
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, err)
		return
	}
	res, err := s.Resy.Search(r.Context(), st.Credentials(), q)
	if err != nil {
		s.jsonError(w, http.StatusBadGateway, err)
		return
	}
	writeRaw(w, res)
}

func (s *Server) handleVenue(w http.ResponseWriter, r *http.Request) {
	st, err := s.Settings.Load(r.Context())
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, err)
		return
	}
	res, err := s.Resy.Venue(r.Context(), st.Credentials(), r.PathValue("id"))
	if err != nil {
		s.jsonError(w, http.StatusBadGateway, err)
		return
	}
	writeRaw(w, res)
}

// --- helpers ---

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) jsonError(w http.ResponseWriter, code int, err error) {
	if code >= 500 {
		s.Log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// Start serves h until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv.ListenAndServe()
}
