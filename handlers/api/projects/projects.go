package projects

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"storecanvas/core"
	"storecanvas/handlers/api/apiutil"
	"storecanvas/service"
)

type ProjectService interface {
	CreateProject(ctx context.Context, userID string, in service.ProjectInput) (*core.Project, error)
	ListProjects(ctx context.Context, userID string) ([]*core.Project, error)
	GetProject(ctx context.Context, userID, id string) (*core.Project, error)
	UpdateProject(ctx context.Context, userID, id string, in service.ProjectInput) (*core.Project, error)
	DeleteProject(ctx context.Context, userID, id string) error
}

func HandleList(svc ProjectService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		projects, err := svc.ListProjects(r.Context(), userID)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		if projects == nil {
			projects = []*core.Project{}
		}
		render.JSON(w, r, projects)
	}
}

func HandleCreate(svc ProjectService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		var in service.ProjectInput
		if !apiutil.DecodeJSON(w, r, &in) {
			return
		}

		project, err := svc.CreateProject(r.Context(), userID, in)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		logrus.WithFields(logrus.Fields{"user_id": userID, "project_id": project.ID}).Info("Project created")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, project)
	}
}

func HandleGet(svc ProjectService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		project, err := svc.GetProject(r.Context(), userID, chi.URLParam(r, "projectId"))
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		render.JSON(w, r, project)
	}
}

func HandleUpdate(svc ProjectService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		var in service.ProjectInput
		if !apiutil.DecodeJSON(w, r, &in) {
			return
		}

		project, err := svc.UpdateProject(r.Context(), userID, chi.URLParam(r, "projectId"), in)
		if err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		render.JSON(w, r, project)
	}
}

func HandleDelete(svc ProjectService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := apiutil.UserID(w, r)
		if !ok {
			return
		}
		if err := svc.DeleteProject(r.Context(), userID, chi.URLParam(r, "projectId")); err != nil {
			apiutil.WriteError(w, r, err)
			return
		}
		render.JSON(w, r, map[string]bool{"success": true})
	}
}
