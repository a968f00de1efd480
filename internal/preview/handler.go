package preview

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"texture-preview/internal/platform/metrics"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
)

// Handler exposes the preview daemon's control surface using go-chi.
// The UI layer drives it; each selection request carries the stable asset
// identity used for re-validation.
type Handler struct {
	coord   *Coordinator
	repo    Repository
	scanner *Scanner
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler over the given collaborators.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(coord *Coordinator, repo Repository, scanner *Scanner, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{coord: coord, repo: repo, scanner: scanner, log: log, metrics: m}
}

// ListAssets handles GET /assets.
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.repo.ListAssets())
}

// GetAsset handles GET /assets/{asset_id}.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id := AssetID(chi.URLParam(r, "asset_id"))
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	info, ok := h.repo.GetAsset(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Rescan handles POST /assets/scan. The scan runs in the background; the
// request returns immediately.
func (h *Handler) Rescan(w http.ResponseWriter, r *http.Request) {
	go func() {
		// Detached from the request context: the scan outlives the 202 reply.
		if _, err := h.scanner.Scan(context.Background()); err != nil {
			h.log.Debug("rescan stopped early", slog.String("error", err.Error()))
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

// SelectAsset handles POST /assets/{asset_id}/select: the selection event.
// 200 loaded, 204 superseded, 404 unknown, 409 gate busy, 500 decode failure.
func (h *Handler) SelectAsset(w http.ResponseWriter, r *http.Request) {
	id := AssetID(chi.URLParam(r, "asset_id"))
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch err := h.coord.Select(r.Context(), id); {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, ErrAssetNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, ErrPreviewBusy):
		// Not an error: the load was dropped, the user's next selection
		// supersedes it anyway.
		w.WriteHeader(http.StatusConflict)
	case errors.Is(err, ErrSuperseded):
		w.WriteHeader(http.StatusNoContent)
	default:
		h.log.Error("select failed", slog.String("asset", string(id)), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// packRequest is the POST /materials/{material}/pack body.
type packRequest struct {
	Sources ORMSources `json:"sources"`
}

// packRefusal is returned when classification refuses the sources.
type packRefusal struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing"`
}

// PackMaterial handles POST /materials/{material}/pack. A PackNone
// classification is a refusal, not an error: the response names exactly
// which sources are missing.
func (h *Handler) PackMaterial(w http.ResponseWriter, r *http.Request) {
	material := chi.URLParam(r, "material")
	if material == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req packRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid pack body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	v, err := h.repo.CreatePacked(material, req.Sources)
	if errors.Is(err, ErrNothingToPack) {
		writeJSON(w, http.StatusUnprocessableEntity, packRefusal{
			Error:   "sources do not form a packable set",
			Missing: MissingSources(req.Sources),
		})
		return
	}
	if err != nil {
		h.log.Error("pack failed", slog.String("material", material), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.log.Info("packed texture registered",
		slog.String("id", string(v.ID)),
		slog.String("name", v.Name),
		slog.String("workflow", v.Workflow))
	writeJSON(w, http.StatusCreated, v)
}

// ListPacked handles GET /packed.
func (h *Handler) ListPacked(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.repo.ListPacked())
}

// CompletePacked handles POST /packed/{packed_id}/complete, called once the
// external packing operation has written the concrete container file.
func (h *Handler) CompletePacked(w http.ResponseWriter, r *http.Request) {
	id := PackedID(chi.URLParam(r, "packed_id"))
	switch err := h.repo.MarkPacked(id); {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, ErrPackedNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, ErrAlreadyPacked):
		w.WriteHeader(http.StatusConflict)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// DeletePacked handles DELETE /packed/{packed_id}. Removes only the virtual
// entity; source textures are never touched. Idempotent.
func (h *Handler) DeletePacked(w http.ResponseWriter, r *http.Request) {
	h.repo.DeletePacked(PackedID(chi.URLParam(r, "packed_id")))
	w.WriteHeader(http.StatusNoContent)
}

// channelMaskRequest is the POST /renderer/channel-mask body.
type channelMaskRequest struct {
	Mask uint32 `json:"mask"`
}

// SetChannelMask handles POST /renderer/channel-mask.
func (h *Handler) SetChannelMask(w http.ResponseWriter, r *http.Request) {
	var req channelMaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.coord.SetChannelMask(r.Context(), req.Mask); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
