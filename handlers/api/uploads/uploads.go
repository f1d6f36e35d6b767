package uploads

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"storecanvas/core"
	"storecanvas/handlers/api/apiutil"
	"storecanvas/service"
)

// multipartMemory is the part of a multipart form held in memory; larger
// files spill to temporary files.
const multipartMemory = 8 << 20

type UploadService interface {
	CreateUpload(ctx context.Context, userID string, in service.UploadInput, data []byte) (*core.Upload, error)
	ListUploads(ctx context.Context, userID, projectID string) ([]*core.Upload, error)
	RenameUpload(ctx context.Context, userID, id, name string) (*core.Upload, error)
	DeleteUpload(ctx context.Context, userID, id string) error
}

func HandleList(svc UploadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		uploads, err := svc.ListUploads(r.Context(), userID, r.URL.Query().Get("projectId"))
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		if uploads == nil {
			uploads = []*core.Upload{}
		}
		render.JSON(w, r, uploads)
	}
}

// HandleCreate accepts a multipart form with the image in "file" and optional
// "projectId", "type" and "name" fields.
func HandleCreate(svc UploadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, service.MaxUploadBytes+multipartMemory)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				render.Status(r, http.StatusRequestEntityTooLarge)
				render.JSON(w, r, map[string]string{"error": "File too large"})
				return
			}
			logrus.WithError(err).Debug("Failed to parse upload form")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Multipart form expected"})
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "File is required"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, service.MaxUploadBytes+1))
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}

		in := service.UploadInput{
			ProjectID: r.FormValue("projectId"),
			Name:      r.FormValue("name"),
			Kind:      core.UploadKind(r.FormValue("type")),
		}
		if in.Name == "" {
			in.Name = header.Filename
		}

		upload, err := svc.CreateUpload(r.Context(), userID, in, data)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		logrus.WithFields(logrus.Fields{"user_id": userID, "upload_id": upload.ID}).Info("Upload created")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, upload)
	}
}

func HandleRename(svc UploadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		var req struct {
			Name string `json:"name"`
		}
		if !apiutil.DecodeJSON(w, r, &req) {
			return
		}
		upload, err := svc.RenameUpload(r.Context(), userID, chi.URLParam(r, "id"), req.Name)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		render.JSON(w, r, upload)
	}
}

func HandleDelete(svc UploadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		if err := svc.DeleteUpload(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		render.JSON(w, r, map[string]bool{"success": true})
	}
}
