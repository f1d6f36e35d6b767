package uploads

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"storecanvas/core"
	"storecanvas/handlers/api/apiutil"
	"storecanvas/service"
)

// EditingService derives new uploads from existing ones.
type EditingService interface {
	TransformUpload(ctx context.Context, userID, id string, in service.TransformInput) (*core.Upload, error)
	FilterUpload(ctx context.Context, userID, id string, in service.FilterInput) (*core.Upload, error)
	ConvertUpload(ctx context.Context, userID, id string, format core.Format) (*core.Upload, error)
}

type transformRequest struct {
	UploadID string `json:"uploadId"`
	service.TransformInput
}

type filterRequest struct {
	UploadID string `json:"uploadId"`
	service.FilterInput
}

type convertRequest struct {
	UploadID string      `json:"uploadId"`
	Format   core.Format `json:"format"`
}

func uploadID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: uploadId is required", core.ErrInvalidUpload)
	}
	return nil
}

func writeEdited(w http.ResponseWriter, r *http.Request, upload *core.Upload, err error) {
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{"upload": upload})
}

func HandleTransform(svc EditingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		var req transformRequest
		if !apiutil.DecodeJSON(w, r, &req) {
			return
		}
		if err := uploadID(req.UploadID); err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		upload, err := svc.TransformUpload(r.Context(), userID, req.UploadID, req.TransformInput)
		writeEdited(w, r, upload, err)
	}
}

func HandleFilter(svc EditingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		var req filterRequest
		if !apiutil.DecodeJSON(w, r, &req) {
			return
		}
		if err := uploadID(req.UploadID); err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		upload, err := svc.FilterUpload(r.Context(), userID, req.UploadID, req.FilterInput)
		writeEdited(w, r, upload, err)
	}
}

func HandleConvert(svc EditingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		var req convertRequest
		if !apiutil.DecodeJSON(w, r, &req) {
			return
		}
		if err := uploadID(req.UploadID); err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		upload, err := svc.ConvertUpload(r.Context(), userID, req.UploadID, req.Format)
		writeEdited(w, r, upload, err)
	}
}
