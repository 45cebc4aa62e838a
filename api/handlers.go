package api

import (
	"bytes"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/sitelens/artifact"
)

type handlers struct {
	svc       *Service
	retention time.Duration
}

func (h *handlers) test(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "Backend is running"})
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"ai_available": h.svc.Available(),
		"model":        h.svc.ModelName(),
	})
}

func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Models(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) process(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.svc.Process(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) analyze(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Available() {
		writeError(w, r, errUnavailable)
		return
	}
	var req AnalyzeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.svc.Analyze(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) generateCode(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Available() {
		writeError(w, r, errUnavailable)
		return
	}
	var req GenerateCodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.svc.GenerateCode(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// download serves a stored screenshot as an attachment, or its PDF export
// with ?format=pdf.
func (h *handlers) download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	store := h.svc.store

	switch r.URL.Query().Get("format") {
	case "", "png":
	case "pdf":
		png, err := store.ReadPNG(name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var buf bytes.Buffer
		if err := artifact.PNGToPDF(&buf, png); err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", attachment(artifact.PDFName(name)))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
		return
	default:
		writeError(w, r, validationError("format must be png or pdf"))
		return
	}

	f, fi, err := store.Open(name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", attachment(name))
	http.ServeContent(w, r, name, fi.ModTime(), f)
}

func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

func (h *handlers) screenshots(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Screenshots(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	req := HistoryRequest{Kind: r.URL.Query().Get("kind")}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, r, validationError("limit must be a positive integer"))
			return
		}
		req.Limit = n
	}
	resp, err := h.svc.History(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) removeScreenshot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if err := h.svc.RemoveScreenshot(r.Context(), name); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "filename": name})
}

func (h *handlers) sweep(w http.ResponseWriter, r *http.Request) {
	olderThan := h.retention
	if s := r.URL.Query().Get("older_than"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			writeError(w, r, validationError("older_than must be a duration such as 72h"))
			return
		}
		olderThan = d
	}
	resp, err := h.svc.Sweep(r.Context(), olderThan)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
