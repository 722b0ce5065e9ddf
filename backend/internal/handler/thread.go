package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/threads/shared/api"
	"github.com/itchan-dev/threads/shared/domain"
	mw "github.com/itchan-dev/threads/shared/middleware"
	"github.com/itchan-dev/threads/shared/utils"
)

func (h *Handler) CreateThread(w http.ResponseWriter, r *http.Request) {
	userId := mw.GetUserIdFromContext(r)
	if userId == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var body api.CreateThreadRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	thread, err := h.thread.Create(r.Context(), domain.ThreadCreationData{
		Text:   body.Text,
		Author: userId,
		Path:   body.Path,
	})
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, api.CreateThreadResponse{Id: thread.Id})
}

func (h *Handler) AddReply(w http.ResponseWriter, r *http.Request) {
	userId := mw.GetUserIdFromContext(r)
	if userId == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	threadId := chi.URLParam(r, "thread")

	var body api.CreateThreadRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	path := body.Path
	if path == "" {
		path = threadPath(threadId)
	}

	reply, err := h.thread.AddComment(r.Context(), threadId, body.Text, userId, path)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, api.CreateThreadResponse{Id: reply.Id})
}

func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	tree, err := h.thread.Tree(r.Context(), chi.URLParam(r, "thread"))
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, h.toThreadResponse(tree))
}

func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := parsePage(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	nodes, hasMore, err := h.thread.Feed(r.Context(), page, pageSize)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	writeJSON(w, api.FeedResponse{
		Threads: h.toThreadResponses(nodes),
		Page:    max(1, page),
		HasMore: hasMore,
	})
}
