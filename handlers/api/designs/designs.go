package designs

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"storecanvas/core"
	"storecanvas/export"
	"storecanvas/handlers/api/apiutil"
	canvas "storecanvas/render"
	"storecanvas/service"
)

type (
	DesignService interface {
		CreateDesign(ctx context.Context, userID, projectID string, in service.DesignInput) (*core.Design, error)
		ListDesigns(ctx context.Context, userID, projectID string) ([]*core.Design, error)
		GetDesign(ctx context.Context, userID, id string) (*core.Design, error)
		UpdateDesign(ctx context.Context, userID, id string, in service.DesignInput) (*core.Design, error)
		DeleteDesign(ctx context.Context, userID, id string) error
		GenerateBackground(ctx context.Context, userID, id, prompt string) (*core.Design, error)
		ApplyImg2Img(ctx context.Context, userID, id, prompt, base64Image string) (*core.Design, error)
		SuggestCopy(ctx context.Context, userID, id, brief string) ([]string, error)
		Export(ctx context.Context, userID, id string, codes []string, format core.Format) (*export.Batch, error)
		ListExports(ctx context.Context, userID, id string) ([]*core.Export, error)
		Preview(ctx context.Context, userID, id string) ([]byte, []*canvas.LayerError, error)
	}

	GenerateBackgroundRequest struct {
		Prompt string `json:"prompt"`
	}

	Img2ImgRequest struct {
		Prompt      string `json:"prompt"`
		Base64Image string `json:"base64Image"`
	}

	SuggestCopyRequest struct {
		Context string `json:"context"`
	}

	SuggestCopyResponse struct {
		Suggestions []string `json:"suggestions"`
	}

	ExportRequest struct {
		SizePresetCodes []string    `json:"sizePresetCodes"`
		Format          core.Format `json:"format"`
	}

	ExportResponse struct {
		Exports     []*core.Export       `json:"exports"`
		Results     []export.Result      `json:"results"`
		LayerErrors []*canvas.LayerError `json:"layerErrors,omitempty"`
	}
)

func HandleList(svc DesignService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		designs, err := svc.ListDesigns(r.Context(), userID, chi.URLParam(r, "projectId"))
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		if designs == nil {
			designs = []*core.Design{}
		}
		render.JSON(w, r, designs)
	}
}

func HandleCreate(svc DesignService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		var in service.DesignInput
		if !apiutil.DecodeJSON(w, r, &in) {
			return
		}

		design, err := svc.CreateDesign(r.Context(), userID, chi.URLParam(r, "projectId"), in)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		logrus.WithFields(logrus.Fields{
			"project_id": design.ProjectID,
			"design_id":  design.ID,
			"layers":     len(design.Layers),
		}).Info("Design created")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, design)
	}
}

func HandleGet(svc DesignService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		design, err := svc.GetDesign(r.Context(), userID, chi.URLParam(r, "id"))
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		render.JSON(w, r, design)
	}
}

func HandleUpdate(svc DesignService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		var in service.DesignInput
		if !apiutil.DecodeJSON(w, r, &in) {
			return
		}

		design, err := svc.UpdateDesign(r.Context(), userID, chi.URLParam(r, "id"), in)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		render.JSON(w, r, design)
	}
}

func HandleDelete(svc DesignService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		if err := svc.DeleteDesign(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		render.JSON(w, r, map[string]bool{"success": true})
	}
}

func HandleGenerateBackground(svc DesignService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		var req GenerateBackgroundRequest
		if !apiutil.DecodeJSON(w, r, &req) {
			return
		}

		design, err := svc.GenerateBackground(r.Context(), userID, chi.URLParam(r, "id"), req.Prompt)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		render.JSON(w, r, design)
	}
}

func HandleApplyImg2Img(svc DesignService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		var req Img2ImgRequest
		if !apiutil.DecodeJSON(w, r, &req) {
			return
		}

		design, err := svc.ApplyImg2Img(r.Context(), userID, chi.URLParam(r, "id"), req.Prompt, req.Base64Image)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		render.JSON(w, r, design)
	}
}

func HandleSuggestCopy(svc DesignService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		var req SuggestCopyRequest
		if !apiutil.DecodeJSON(w, r, &req) {
			return
		}

		lines, err := svc.SuggestCopy(r.Context(), userID, chi.URLParam(r, "id"), req.Context)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		if lines == nil {
			lines = []string{}
		}
		render.JSON(w, r, SuggestCopyResponse{Suggestions: lines})
	}
}

// HandleExport runs an export batch. Per-preset failures are reported in
// results; only request-level failures produce an error status.
func HandleExport(svc DesignService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		var req ExportRequest
		if !apiutil.DecodeJSON(w, r, &req) {
			return
		}

		batch, err := svc.Export(r.Context(), userID, chi.URLParam(r, "id"), req.SizePresetCodes, req.Format)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		render.JSON(w, r, ExportResponse{
			Exports:     batch.Exports(),
			Results:     batch.Results,
			LayerErrors: batch.LayerErrors,
		})
	}
}

func HandleListExports(svc DesignService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		exports, err := svc.ListExports(r.Context(), userID, chi.URLParam(r, "id"))
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		if exports == nil {
			exports = []*core.Export{}
		}
		render.JSON(w, r, exports)
	}
}

// HandlePreview streams the base composition as PNG. The number of layers
// that failed to render is reported in X-Layer-Errors.
func HandlePreview(svc DesignService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		data, layerErrors, err := svc.Preview(r.Context(), userID, chi.URLParam(r, "id"))
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Layer-Errors", strconv.Itoa(len(layerErrors)))
		w.Write(data)
	}
}
