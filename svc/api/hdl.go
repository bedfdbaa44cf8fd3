package api

import (
	"net/http"
	"purrbin/cfg"
	"purrbin/pkg/domain"
	"purrbin/svc/svc"
	"purrbin/svc/util"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

const textPlain = "text/plain; charset=utf-8"

type Hdl struct {
	paste *svc.Paste
	cfg   *cfg.Cfg
}

func (h *Hdl) CreatePaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())

	// a declared length over the limit can be refused before reading
	if h.cfg.OversizePolicy == cfg.OversizeReject && r.ContentLength > int64(h.cfg.MaxPasteSize) {
		log.Warn().
			Int64("content_length", r.ContentLength).
			Str("request_id", requestID).
			Msg("Content-Length exceeds maximum")
		writeErr(w, domain.ErrPasteTooLarge, requestID)
		return
	}

	paste, err := h.paste.Create(r.Context(), r.Body)
	if err != nil {
		log.Warn().
			Err(err).
			Str("ip", util.RedactIP(r.RemoteAddr)).
			Str("request_id", requestID).
			Msg("paste not stored")
		writeErr(w, err, requestID)
		return
	}
	if paste.Truncated {
		w.Header().Set("X-Paste-Truncated", "true")
		w.Header().Set("X-Paste-Dropped", strconv.FormatInt(paste.Dropped, 10))
	}
	log.Info().
		Str("slug", paste.Slug.String()).
		Int("size", paste.Size).
		Bool("truncated", paste.Truncated).
		Bool("collided", paste.Collided).
		Str("request_id", requestID).
		Msg("paste created")
	w.Header().Set("Content-Type", textPlain)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(paste.Response()))
}

func (h *Hdl) GetPaste(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	slug := chi.URLParam(r, "slug")
	data, err := h.paste.Get(r.Context(), slug)
	if err != nil {
		if domain.Status(err) >= http.StatusInternalServerError {
			hlog.FromRequest(r).Error().
				Err(err).
				Str("slug", slug).
				Str("request_id", requestID).
				Msg("failed to read paste")
		}
		writeErr(w, err, requestID)
		return
	}
	w.Header().Set("Content-Type", textPlain)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// writeErr sends the domain message as plain text. Server side failures
// never leak their cause.
func writeErr(w http.ResponseWriter, err error, requestID string) {
	status := domain.Status(err)
	msg := domain.ToResp(err).Error.Msg
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		msg = "internal server error"
	}
	if requestID != "" && w.Header().Get("X-Request-ID") == "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	w.Header().Set("Content-Type", textPlain)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	w.Write([]byte(msg + "\n"))
}
