// Package web is the HTTP surface of the daemon: canvas CRUD, element
// operations, image upload, display control and device status.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/MePride/pin/internal/battery"
	"github.com/MePride/pin/internal/canvas"
	"github.com/MePride/pin/internal/config"
	"github.com/MePride/pin/internal/display"
	"github.com/MePride/pin/internal/epd"
	"github.com/MePride/pin/internal/errs"
	"github.com/MePride/pin/internal/gfx"
	appLog "github.com/MePride/pin/internal/log"
	"github.com/MePride/pin/internal/plugin"
)

// maxImageUpload bounds the request body read on image uploads; one byte
// over the store limit is enough to reject with a clean error.
const maxImageUpload = canvas.MaxImageSize + 1

// Server routes the HTTP API. The display service is nil in render-only
// mode; display endpoints then answer 409.
type Server struct {
	cfg     *config.Config
	mgr     *canvas.Manager
	disp    *display.Service
	plugins *plugin.Manager
	batt    battery.Reader
	mux     *http.ServeMux
	started time.Time
}

func NewServer(cfg *config.Config, mgr *canvas.Manager, disp *display.Service, plugins *plugin.Manager, batt battery.Reader) *Server {
	s := &Server{
		cfg:     cfg,
		mgr:     mgr,
		disp:    disp,
		plugins: plugins,
		batt:    batt,
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the routed handler, wrapped with basic auth when
// credentials are configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled")
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	return s.cfg != nil && s.cfg.BasicAuth != nil &&
		s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware protects everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Pin", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/battery", s.handleBattery)

	s.mux.HandleFunc("GET /api/canvases", s.handleCanvasList)
	s.mux.HandleFunc("POST /api/canvases", s.handleCanvasCreate)
	s.mux.HandleFunc("GET /api/canvases/{id}", s.handleCanvasGet)
	s.mux.HandleFunc("PUT /api/canvases/{id}", s.handleCanvasUpdate)
	s.mux.HandleFunc("DELETE /api/canvases/{id}", s.handleCanvasDelete)
	s.mux.HandleFunc("GET /api/canvases/{id}/export", s.handleCanvasExport)
	s.mux.HandleFunc("POST /api/canvases/import", s.handleCanvasImport)
	s.mux.HandleFunc("POST /api/canvases/{id}/display", s.handleCanvasDisplay)

	s.mux.HandleFunc("POST /api/canvases/{id}/elements", s.handleElementAdd)
	s.mux.HandleFunc("PUT /api/canvases/{id}/elements/{eid}", s.handleElementUpdate)
	s.mux.HandleFunc("DELETE /api/canvases/{id}/elements/{eid}", s.handleElementDelete)

	s.mux.HandleFunc("PUT /api/images/{id}", s.handleImagePut)
	s.mux.HandleFunc("DELETE /api/images/{id}", s.handleImageDelete)

	s.mux.HandleFunc("POST /api/display/refresh", s.handleDisplayRefresh)
	s.mux.HandleFunc("POST /api/display/clear", s.handleDisplayClear)
	s.mux.HandleFunc("POST /api/display/sleep", s.handleDisplaySleep)
	s.mux.HandleFunc("POST /api/display/wake", s.handleDisplayWake)

	s.mux.HandleFunc("GET /api/plugins", s.handlePluginList)
	s.mux.HandleFunc("POST /api/plugins/{name}/enable", s.handlePluginEnable)
	s.mux.HandleFunc("POST /api/plugins/{name}/disable", s.handlePluginDisable)

	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w0, h0 := s.mgr.Size()
	resp := map[string]any{
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"panel_attached": s.disp != nil,
		"panel_width":    w0,
		"panel_height":   h0,
		"active_canvas":  s.cfg.ActiveCanvas,
	}
	if s.disp != nil {
		stats, err := s.disp.Stats()
		if err != nil {
			writeErr(w, err)
			return
		}
		resp["refresh_stats"] = stats
	}
	if s.plugins != nil {
		resp["plugins"] = len(s.plugins.List())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	if s.batt == nil {
		writeError(w, http.StatusConflict, "no battery reader configured")
		return
	}
	st, err := s.batt.Read(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCanvasList(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)
	ids, err := s.mgr.List(limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"canvases": ids})
}

func (s *Server) handleCanvasCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c, err := s.mgr.Create(req.ID, req.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleCanvasGet(w http.ResponseWriter, r *http.Request) {
	c, err := s.mgr.Get(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCanvasUpdate(w http.ResponseWriter, r *http.Request) {
	var c canvas.Canvas
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid canvas JSON")
		return
	}
	if c.ID != r.PathValue("id") {
		writeError(w, http.StatusBadRequest, "canvas id does not match URL")
		return
	}
	if err := s.mgr.Update(&c); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleCanvasDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Delete(r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleCanvasExport(w http.ResponseWriter, r *http.Request) {
	blob, err := s.mgr.Export(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(blob)
}

func (s *Server) handleCanvasImport(w http.ResponseWriter, r *http.Request) {
	blob, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	c, err := s.mgr.Import(blob)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCanvasDisplay(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Display(r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "displayed"})
}

func (s *Server) handleElementAdd(w http.ResponseWriter, r *http.Request) {
	var e canvas.Element
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid element JSON")
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()[:8]
	}
	if err := s.mgr.AddElement(r.PathValue("id"), e); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": e.ID})
}

func (s *Server) handleElementUpdate(w http.ResponseWriter, r *http.Request) {
	var e canvas.Element
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid element JSON")
		return
	}
	if e.ID == "" {
		e.ID = r.PathValue("eid")
	}
	if e.ID != r.PathValue("eid") {
		writeError(w, http.StatusBadRequest, "element id does not match URL")
		return
	}
	if err := s.mgr.UpdateElement(r.PathValue("id"), e); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleElementDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.RemoveElement(r.PathValue("id"), r.PathValue("eid")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleImagePut(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImageUpload))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	format := canvas.FormatPNG
	switch r.URL.Query().Get("format") {
	case "bmp":
		format = canvas.FormatBMP
	case "jpg", "jpeg":
		format = canvas.FormatJPG
	case "png", "":
	default:
		writeError(w, http.StatusBadRequest, "unknown image format")
		return
	}
	if err := s.mgr.StoreImage(r.PathValue("id"), data, format); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": r.PathValue("id"), "size": len(data)})
}

func (s *Server) handleImageDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.DeleteImage(r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) requireDisplay(w http.ResponseWriter) bool {
	if s.disp == nil {
		writeError(w, http.StatusConflict, "no panel attached (render-only mode)")
		return false
	}
	return true
}

func (s *Server) handleDisplayRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.requireDisplay(w) {
		return
	}
	mode := epd.RefreshFull
	switch r.URL.Query().Get("mode") {
	case "partial":
		mode = epd.RefreshPartial
	case "fast":
		mode = epd.RefreshFast
	case "full", "":
	default:
		writeError(w, http.StatusBadRequest, "unknown refresh mode")
		return
	}
	if err := s.disp.Refresh(mode); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (s *Server) handleDisplayClear(w http.ResponseWriter, r *http.Request) {
	if !s.requireDisplay(w) {
		return
	}
	c := gfx.White
	if v := r.URL.Query().Get("color"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || !gfx.Color(n).Valid() {
			writeError(w, http.StatusBadRequest, "invalid color")
			return
		}
		c = gfx.Color(n)
	}
	if err := s.disp.Clear(c); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleDisplaySleep(w http.ResponseWriter, _ *http.Request) {
	if !s.requireDisplay(w) {
		return
	}
	if err := s.disp.Sleep(); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sleeping"})
}

func (s *Server) handleDisplayWake(w http.ResponseWriter, _ *http.Request) {
	if !s.requireDisplay(w) {
		return
	}
	if err := s.disp.Wake(); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "awake"})
}

func (s *Server) handlePluginList(w http.ResponseWriter, _ *http.Request) {
	if s.plugins == nil {
		writeJSON(w, http.StatusOK, map[string]any{"plugins": []plugin.Info{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plugins": s.plugins.List()})
}

func (s *Server) handlePluginEnable(w http.ResponseWriter, r *http.Request) {
	if s.plugins == nil {
		writeError(w, http.StatusConflict, "plugin runtime disabled")
		return
	}
	if err := s.plugins.Enable(r.Context(), r.PathValue("name")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}

func (s *Server) handlePluginDisable(w http.ResponseWriter, r *http.Request) {
	if s.plugins == nil {
		writeError(w, http.StatusConflict, "plugin runtime disabled")
		return
	}
	if err := s.plugins.Disable(r.PathValue("name")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

// handlePreview renders a canvas to a palettized PNG, for checking layout
// without spending a refresh cycle on the physical ink.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("canvas")
	if id == "" {
		id = s.cfg.ActiveCanvas
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "no canvas selected")
		return
	}
	buf, err := s.mgr.Render(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	pw, ph := buf.Size()
	img := image.NewPaletted(image.Rect(0, 0, pw, ph), gfx.Palette())
	copy(img.Pix, buf.Bytes())

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		appLog.Error("preview encode failed", err, "canvas", id)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to encode JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps the error taxonomy onto HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrAlreadyExists),
		errors.Is(err, errs.ErrExhausted),
		errors.Is(err, errs.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, errs.ErrDevice):
		status = http.StatusBadGateway
	}
	writeError(w, status, err.Error())
}
