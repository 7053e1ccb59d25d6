package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"therapist-match-service/internal/app"
	"therapist-match-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

type tagHandlers struct {
	tags *app.TagService
	log  *slog.Logger
}

func (h *tagHandlers) mount(r chi.Router) {
	r.Get("/tags", h.listTags)
	r.Post("/tags", h.createTag)
	r.Put("/tags/{tagID}", h.updateTag)
	r.Delete("/tags/{tagID}", h.deleteTag)
	r.Get("/tags/{tagID}/usage", h.usage)

	r.Get("/therapists", h.listTherapists)
	r.Put("/therapists/{therapistID}/tags", h.setTherapistTags)
}

type tagRequest struct {
	Name string `json:"name"`
}

type therapistTagsRequest struct {
	Tags []domain.TagID `json:"tags"`
}

func (h *tagHandlers) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.ListTags(r.Context())
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *tagHandlers) createTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	tag, err := h.tags.CreateTag(r.Context(), req.Name)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (h *tagHandlers) updateTag(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "tagID")
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	var req tagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	tag, err := h.tags.UpdateTag(r.Context(), domain.TagID(id), req.Name)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

// deleteTag answers 409 with the usage report when the tag is referenced and
// cascade=true was not given.
func (h *tagHandlers) deleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "tagID")
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	cascade, err := boolQuery(r, "cascade")
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	if err := h.tags.DeleteTag(r.Context(), domain.TagID(id), cascade); err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *tagHandlers) usage(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "tagID")
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	all, err := boolQuery(r, "all")
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	usage, err := h.tags.FindUsage(r.Context(), domain.TagID(id), all)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (h *tagHandlers) listTherapists(w http.ResponseWriter, r *http.Request) {
	roster, err := h.tags.Roster(r.Context())
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

func (h *tagHandlers) setTherapistTags(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "therapistID")
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	var req therapistTagsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	if err := h.tags.SetTherapistTags(r.Context(), id, req.Tags); err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	tags, err := h.tags.TherapistTags(r.Context(), id)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, therapistTagsRequest{Tags: tags})
}

func boolQuery(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, domain.Invalid(name, "must be true or false")
	}
	return v, nil
}
