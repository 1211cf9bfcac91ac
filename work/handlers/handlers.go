package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"station-recorder/work/blacklist"
	"station-recorder/work/capture"
	"station-recorder/work/config"
	"station-recorder/work/logger"
	"station-recorder/work/registry"
	"station-recorder/work/titles"
	"station-recorder/work/types"
	"station-recorder/work/utils"
)

// SettingsStore is the read/write side of the runtime settings table.
type SettingsStore interface {
	GetSetting(key, fallback string) (string, error)
	SetSetting(key, value string) error
}

// Handlers bundles the collaborators the HTTP control API works against.
type Handlers struct {
	Manager  *capture.Manager
	Registry *registry.Registry
	Gate     *blacklist.Gate
	Titles   *titles.Board
	Settings SettingsStore
	Config   *config.Config
}

// stationView is the JSON shape of a directory entry plus its live flags.
type stationView struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Kind        string `json:"kind"`
	ContentType string `json:"contentType,omitempty"`
	BitRate     string `json:"bitRate,omitempty"`
	Active      bool   `json:"active"`
	Recording   bool   `json:"recording"`
}

// sessionView is the JSON shape of one live capture session.
type sessionView struct {
	StationUUID   string    `json:"stationUuid"`
	StationName   string    `json:"stationName"`
	Kind          string    `json:"kind"`
	Title         string    `json:"title"`
	Transitions   int       `json:"transitions"`
	BufferedBytes int64     `json:"bufferedBytes"`
	Buffered      string    `json:"buffered"`
	StartedAt     time.Time `json:"startedAt"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("{handlers - writeJSON} encode failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// HandleStartCapture starts a capture session for the station in the path.
func (h *Handlers) HandleStartCapture(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]

	if err := h.Manager.StartCapture(uuid); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrCaptureActive) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "uuid": uuid})
}

// HandleStopCapture stops the station's capture session. An optional JSON
// body {"storeIncomplete": bool} overrides the configured default for
// flushing the buffered partial chunk.
func (h *Handlers) HandleStopCapture(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]

	var body struct {
		StoreIncomplete *bool `json:"storeIncomplete"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body) // empty body is fine
	}

	if err := h.Manager.StopCapture(uuid, body.StoreIncomplete); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping", "uuid": uuid})
}

// HandleListCaptures returns every live capture session.
func (h *Handlers) HandleListCaptures(w http.ResponseWriter, r *http.Request) {
	sessions := h.Manager.Sessions()

	out := make([]sessionView, 0, len(sessions))
	for uuid, sess := range sessions {
		out = append(out, sessionView{
			StationUUID:   uuid,
			StationName:   sess.Station.Name,
			Kind:          sess.Station.Kind.String(),
			Title:         sess.Title,
			Transitions:   sess.Transitions,
			BufferedBytes: sess.Chunk.Bytes(),
			Buffered:      utils.FormatBytes(sess.Chunk.Bytes()),
			StartedAt:     sess.StartedAt,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

// HandleListStations returns the station directory with live flags.
func (h *Handlers) HandleListStations(w http.ResponseWriter, r *http.Request) {
	stations := h.Registry.All()

	out := make([]stationView, 0, len(stations))
	for _, st := range stations {
		out = append(out, stationView{
			UUID:        st.UUID,
			Name:        st.Name,
			URL:         st.URL,
			Kind:        st.Kind.String(),
			ContentType: st.GetContentType(),
			BitRate:     st.BitRate,
			Active:      st.Active.Load(),
			Recording:   st.Recording.Load(),
		})
	}

	writeJSON(w, http.StatusOK, out)
}

// HandleRegisterStation adds a station to the directory at runtime.
func (h *Handlers) HandleRegisterStation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UUID      string `json:"uuid"`
		Name      string `json:"name"`
		URL       string `json:"url"`
		Kind      string `json:"kind"`
		BitRate   string `json:"bitRate"`
		ChunkSize int    `json:"chunkSize"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Name == "" || body.URL == "" {
		http.Error(w, "name and url are required", http.StatusBadRequest)
		return
	}
	if body.UUID == "" {
		body.UUID = "sr-custom-" + utils.SanitizeFileName(body.Name)
	}

	st := &types.Station{
		UUID:      body.UUID,
		Name:      body.Name,
		URL:       body.URL,
		Kind:      types.ParseStreamKind(body.Kind),
		BitRate:   body.BitRate,
		ChunkSize: body.ChunkSize,
	}
	if err := h.Registry.Register(st); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"uuid": st.UUID})
}

// HandleRemoveStation deletes a station from the directory. Stations with a
// live capture cannot be removed.
func (h *Handlers) HandleRemoveStation(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]

	if err := h.Registry.Remove(uuid); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrCaptureActive) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandlePublishTitle records the currently playing title for a station. This
// is the inbound side of the title board: an external now-playing feed posts
// here and the legacy capture loop picks the change up as a chunk boundary.
func (h *Handlers) HandlePublishTitle(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]

	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, found := h.Registry.Get(uuid); !found {
		http.Error(w, "unknown station", http.StatusNotFound)
		return
	}

	h.Titles.Publish(uuid, body.Title)
	w.WriteHeader(http.StatusNoContent)
}

// HandleListBlacklist returns the sanitized blacklist contents for one
// station.
func (h *Handlers) HandleListBlacklist(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	if _, found := h.Registry.Get(uuid); !found {
		http.Error(w, "unknown station", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.Gate.Entries(uuid))
}

// HandleAddBlacklist blacklists a title on one station. Idempotent.
func (h *Handlers) HandleAddBlacklist(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	if _, found := h.Registry.Get(uuid); !found {
		http.Error(w, "unknown station", http.StatusNotFound)
		return
	}

	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Gate.Add(uuid, body.Title); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveBlacklist removes a title from one station's blacklist.
// Idempotent.
func (h *Handlers) HandleRemoveBlacklist(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]
	if _, found := h.Registry.Get(uuid); !found {
		http.Error(w, "unknown station", http.StatusNotFound)
		return
	}

	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Gate.Remove(uuid, body.Title); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetSettings returns the runtime-tunable settings, falling back to the
// configuration file defaults for keys never written.
func (h *Handlers) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	storeIncomplete := h.Config.StoreIncomplete
	if h.Settings != nil {
		raw, err := h.Settings.GetSetting(capture.SettingKeyStoreIncomplete, strconv.FormatBool(storeIncomplete))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if v, perr := strconv.ParseBool(raw); perr == nil {
			storeIncomplete = v
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"storeIncomplete": storeIncomplete})
}

// HandleUpdateSettings persists runtime-tunable settings. New capture
// sessions pick the values up on start; running sessions keep theirs.
func (h *Handlers) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if h.Settings == nil {
		http.Error(w, "settings store unavailable", http.StatusServiceUnavailable)
		return
	}

	var body struct {
		StoreIncomplete *bool `json:"storeIncomplete"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.StoreIncomplete == nil {
		http.Error(w, "no settings in request", http.StatusBadRequest)
		return
	}

	if err := h.Settings.SetSetting(capture.SettingKeyStoreIncomplete, strconv.FormatBool(*body.StoreIncomplete)); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealth is the liveness probe.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"activeCaptures": h.Registry.ActiveCount(),
	})
}
