package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/threads/shared/api"
	"github.com/itchan-dev/threads/shared/domain"
	mw "github.com/itchan-dev/threads/shared/middleware"
	"github.com/itchan-dev/threads/shared/utils"
)

// UpdateMe creates or updates the caller's profile, used by onboarding and the profile editor
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userId := mw.GetUserIdFromContext(r)
	if userId == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var body api.UpdateUserRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	user, err := h.user.Upsert(r.Context(), domain.UserProfileData{
		Id:       userId,
		Username: body.Username,
		Name:     body.Name,
		Bio:      body.Bio,
		Image:    body.Image,
		Path:     body.Path,
	})
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, user)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.user.Get(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, user)
}

// SearchUsers lists users other than the caller
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := parsePage(r)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	sort, err := parseSort(r.URL.Query().Get("sort"))
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	users, hasMore, err := h.user.Search(r.Context(), domain.UserSearch{
		ExcludeId:  mw.GetUserIdFromContext(r),
		Search:     r.URL.Query().Get("q"),
		PageNumber: page,
		PageSize:   pageSize,
		Sort:       sort,
	})
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	writeJSON(w, api.UsersResponse{Users: users, Page: max(1, page), HasMore: hasMore})
}

func (h *Handler) GetUserThreads(w http.ResponseWriter, r *http.Request) {
	user, nodes, err := h.thread.UserThreads(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, api.UserThreadsResponse{User: user, Threads: h.toThreadResponses(nodes)})
}

// GetActivity returns replies other users left on the caller's threads
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	userId := mw.GetUserIdFromContext(r)
	if userId == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	replies, err := h.activity.GetActivity(r.Context(), userId)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, api.ActivityResponse{Replies: replies})
}
