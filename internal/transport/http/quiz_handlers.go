package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"therapist-match-service/internal/app"
	"therapist-match-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

type quizHandlers struct {
	drafts  *app.DraftService
	matches *app.MatchService
	log     *slog.Logger
}

func (h *quizHandlers) mount(r chi.Router) {
	r.Get("/quizzes", h.listQuizzes)
	r.Post("/quizzes", h.createQuiz)
	r.Get("/quizzes/{quizID}", h.getQuiz)
	r.Post("/quizzes/{quizID}/publish", h.publish)
	r.Get("/quizzes/{quizID}/published", h.published)
	r.Post("/quizzes/{quizID}/match", h.match)

	r.Get("/quiz-drafts/{quizID}", h.listDrafts)
	r.Post("/quiz-drafts/{quizID}", h.createDraft)
	r.Get("/quiz-drafts/{quizID}/{draftID}", h.getDraft)
	r.Put("/quiz-drafts/{quizID}/{draftID}", h.overwriteDraft)
	r.Delete("/quiz-drafts/{quizID}/{draftID}", h.deleteDraft)
}

type createQuizRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// draftRequest carries content in any known persisted layout, legacy ones included.
type draftRequest struct {
	Name   string          `json:"name"`
	Author string          `json:"author"`
	Data   json.RawMessage `json:"data"`
}

func (req draftRequest) snapshot() (domain.Snapshot, error) {
	if len(req.Data) == 0 {
		return domain.Snapshot{}, domain.Invalid("data", "quiz content is required")
	}
	snapshot, err := domain.DecodeSnapshot(req.Data)
	if err != nil && !errors.Is(err, domain.ErrValidation) {
		return domain.Snapshot{}, domain.Invalid("data", "%v", err)
	}
	return snapshot, err
}

type publishRequest struct {
	DraftID int64 `json:"draftId"`
}

type matchRequest struct {
	AnswerIDs []int64 `json:"answerIds"`
}

type matchResponse struct {
	Matches []domain.TherapistMatch `json:"matches"`
}

func (h *quizHandlers) listQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.drafts.ListQuizzes(r.Context())
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *quizHandlers) createQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	quiz, err := h.drafts.CreateQuiz(r.Context(), req.Title, req.Description)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *quizHandlers) getQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, err := int64Param(r, "quizID")
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	quiz, err := h.drafts.GetQuiz(r.Context(), quizID)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *quizHandlers) publish(w http.ResponseWriter, r *http.Request) {
	quizID, err := int64Param(r, "quizID")
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	var req publishRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	if req.DraftID <= 0 {
		writeDomainErr(w, h.log, domain.Invalid("draftId", "must be a positive integer"))
		return
	}
	quiz, err := h.drafts.Publish(r.Context(), quizID, req.DraftID)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *quizHandlers) published(w http.ResponseWriter, r *http.Request) {
	quizID, err := int64Param(r, "quizID")
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	draft, ok, err := h.drafts.GetPublished(r.Context(), quizID)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	if !ok {
		writeErr(w, http.StatusNotFound, "quiz has no published draft")
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *quizHandlers) match(w http.ResponseWriter, r *http.Request) {
	quizID, err := int64Param(r, "quizID")
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	var req matchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	matches, err := h.matches.Submit(r.Context(), quizID, req.AnswerIDs)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{Matches: matches})
}

func (h *quizHandlers) listDrafts(w http.ResponseWriter, r *http.Request) {
	quizID, err := int64Param(r, "quizID")
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	drafts, err := h.drafts.ListDrafts(r.Context(), quizID)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, drafts)
}

func (h *quizHandlers) createDraft(w http.ResponseWriter, r *http.Request) {
	quizID, err := int64Param(r, "quizID")
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	var req draftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	snapshot, err := req.snapshot()
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	draft, err := h.drafts.CreateDraft(r.Context(), quizID, req.Name, req.Author, snapshot)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

func (h *quizHandlers) getDraft(w http.ResponseWriter, r *http.Request) {
	quizID, draftID, err := draftParams(r)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	draft, err := h.drafts.GetDraft(r.Context(), quizID, draftID)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *quizHandlers) overwriteDraft(w http.ResponseWriter, r *http.Request) {
	quizID, draftID, err := draftParams(r)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	var req draftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	snapshot, err := req.snapshot()
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	draft, err := h.drafts.OverwriteDraft(r.Context(), quizID, draftID, req.Name, req.Author, snapshot)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *quizHandlers) deleteDraft(w http.ResponseWriter, r *http.Request) {
	quizID, draftID, err := draftParams(r)
	if err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	if err := h.drafts.DeleteDraft(r.Context(), quizID, draftID); err != nil {
		writeDomainErr(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func draftParams(r *http.Request) (int64, int64, error) {
	quizID, err := int64Param(r, "quizID")
	if err != nil {
		return 0, 0, err
	}
	draftID, err := int64Param(r, "draftID")
	if err != nil {
		return 0, 0, err
	}
	return quizID, draftID, nil
}
