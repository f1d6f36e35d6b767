package presets

import (
	"net/http"

	"github.com/go-chi/render"

	"storecanvas/core"
)

type Catalog interface {
	List(store core.StoreID, category core.PresetCategory) []core.SizePreset
}

// HandleList lists size presets, optionally filtered by ?store= and ?category=.
func HandleList(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := core.StoreID(r.URL.Query().Get("store"))
		category := core.PresetCategory(r.URL.Query().Get("category"))
		render.JSON(w, r, catalog.List(store, category))
	}
}
