package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/najdeno/internal/apperr"
	"github.com/erazemk/najdeno/internal/imaging"
	"github.com/erazemk/najdeno/internal/lostfound"
	"github.com/erazemk/najdeno/internal/model"
)

// maxFormMemory is the part of a multipart body kept in memory; the rest is
// spooled to disk by net/http.
const maxFormMemory = 8 << 20

// ItemsHandler handles found items, lost reports and match previews.
type ItemsHandler struct {
	Registry *lostfound.Registry
}

type resaleRequest struct {
	Price json.RawMessage `json:"price"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := model.ItemFilter{
		View:       r.URL.Query().Get("view"),
		ReportedBy: r.URL.Query().Get("reported_by"),
	}

	// Students only see their own lost reports.
	claims := GetClaims(r.Context())
	if filter.View == model.ViewReports && !model.RoleAtLeast(claims.Role, model.RoleStaff) {
		filter.ReportedBy = claims.Username
	}

	items, err := h.Registry.ListItems(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	patch, image, err := readItemBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if image != nil {
		defer image.Close()
	}

	item, err := h.Registry.RegisterFoundItem(r.Context(), attrsOf(patch), optionalReader(image))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Report handles POST /api/reports.
func (h *ItemsHandler) Report(w http.ResponseWriter, r *http.Request) {
	patch, image, err := readItemBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if image != nil {
		defer image.Close()
	}

	claims := GetClaims(r.Context())
	report, err := h.Registry.ReportLost(r.Context(), attrsOf(patch), claims.Username, optionalReader(image))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, report)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "item")
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.Registry.GetItem(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "item")
	if err != nil {
		writeError(w, r, err)
		return
	}

	patch, image, err := readItemBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if image != nil {
		defer image.Close()
	}

	item, err := h.Registry.UpdateItem(r.Context(), id, patch, optionalReader(image))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "item")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Registry.DeleteItem(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// Resale handles POST /api/items/{id}/resale.
func (h *ItemsHandler) Resale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "item")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req resaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	price, err := parsePrice(req.Price)
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.Registry.MoveToResale(r.Context(), id, price)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// PreviewMatches handles POST /api/matches/preview.
func (h *ItemsHandler) PreviewMatches(w http.ResponseWriter, r *http.Request) {
	var q model.MatchQuery
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.Registry.PreviewMatches(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// parsePrice accepts a JSON number or a numeric string.
func parsePrice(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, apperr.Validation("price is required")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, apperr.Validation("price must be a number")
	}
	return price, nil
}

func pathID(r *http.Request, what string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s id", what)
	}
	return id, nil
}

// itemFields are the descriptive fields accepted in multipart forms.
var itemFields = []string{
	"name", "description", "category", "brand", "model_no",
	"colour", "identifications", "location", "lost_date",
}

// readItemBody reads descriptive fields from a JSON or multipart body. A
// multipart body may carry a photo in the "image" part; the caller closes it.
func readItemBody(w http.ResponseWriter, r *http.Request) (model.ItemPatch, multipart.File, error) {
	var patch model.ItemPatch

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		err := decodeJSON(r, &patch)
		return patch, nil, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+maxFormMemory)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return patch, nil, apperr.Validation("request body too large")
		}
		return patch, nil, apperr.Validation("invalid multipart form")
	}

	fields := map[string]**string{
		"name":            &patch.Name,
		"description":     &patch.Description,
		"category":        &patch.Category,
		"brand":           &patch.Brand,
		"model_no":        &patch.ModelNo,
		"colour":          &patch.Colour,
		"identifications": &patch.Identifications,
		"location":        &patch.Location,
		"lost_date":       &patch.LostDate,
	}
	for _, key := range itemFields {
		if values, ok := r.MultipartForm.Value[key]; ok && len(values) > 0 {
			v := values[0]
			*fields[key] = &v
		}
	}

	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return patch, nil, nil
	}
	if err != nil {
		return patch, nil, apperr.Validation("reading image: %v", err)
	}
	return patch, file, nil
}

// attrsOf turns a patch into the attributes of a new item.
func attrsOf(p model.ItemPatch) model.ItemAttrs {
	item := p.Apply(model.Item{})
	return model.ItemAttrs{
		Name:            item.Name,
		Description:     item.Description,
		Category:        item.Category,
		Brand:           item.Brand,
		ModelNo:         item.ModelNo,
		Colour:          item.Colour,
		Identifications: item.Identifications,
		Location:        item.Location,
		LostDate:        item.LostDate,
	}
}

// optionalReader avoids handing the registry a non-nil interface holding a
// nil file.
func optionalReader(f multipart.File) io.Reader {
	if f == nil {
		return nil
	}
	return f
}
