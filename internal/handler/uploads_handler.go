package handler

import (
	"io"
	"net/http"

	"github.com/redlantern/bookkeeper/internal/infra/uploads"
	"github.com/redlantern/bookkeeper/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxUploadSize caps receipt uploads at 10 MiB.
const maxUploadSize = 10 << 20

// ============================================================
// Receipt uploads
// ============================================================

func uploadReceiptHandler(store *uploads.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/uploads")
		defer span.End()

		sess := SessionFromContext(ctx)
		if err := service.Authorize(sess, service.OpUploadWrite); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		filename, err := store.Save(header.Filename, file)
		if err != nil {
			logger.Error("receipt upload failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not store upload")
			return
		}

		logger.Info("receipt uploaded",
			zap.String("filename", filename),
			zap.String("user_id", sess.UserID),
		)
		writeJSON(w, http.StatusCreated, map[string]string{"filename": filename})
	}
}

func getReceiptHandler(store *uploads.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/uploads/{filename}")
		defer span.End()

		sess := SessionFromContext(ctx)
		if err := service.Authorize(sess, service.OpUploadRead); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		f, err := store.Open(chi.URLParam(r, "filename"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		io.Copy(w, f)
	}
}
