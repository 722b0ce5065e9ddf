package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/itchan-dev/threads/shared/api"
	"github.com/itchan-dev/threads/shared/domain"
	internal_errors "github.com/itchan-dev/threads/shared/errors"
)

// parseIntParam parses an integer parameter from a string and returns a meaningful error
func parseIntParam(param string, paramName string) (int, error) {
	val, err := strconv.Atoi(param)
	if err != nil {
		return 0, internal_errors.Validation("invalid %s: must be an integer", paramName)
	}
	return val, nil
}

// parsePage reads page and page_size from the query, zero when absent.
// Range checks are left to the service.
func parsePage(r *http.Request) (page, pageSize int, err error) {
	q := r.URL.Query()
	if s := q.Get("page"); s != "" {
		if page, err = parseIntParam(s, "page"); err != nil {
			return 0, 0, err
		}
	}
	if s := q.Get("page_size"); s != "" {
		if pageSize, err = parseIntParam(s, "page_size"); err != nil {
			return 0, 0, err
		}
	}
	return page, pageSize, nil
}

func parseSort(s string) (domain.SortOrder, error) {
	switch domain.SortOrder(s) {
	case "", domain.SortDesc:
		return domain.SortDesc, nil
	case domain.SortAsc:
		return domain.SortAsc, nil
	}
	return "", internal_errors.Validation("invalid sort: must be %s or %s", domain.SortAsc, domain.SortDesc)
}

// toThreadResponse renders text_html for n and every expanded reply
func (h *Handler) toThreadResponse(n *domain.ThreadNode) *api.ThreadResponse {
	if n == nil {
		return nil
	}
	resp := &api.ThreadResponse{
		Thread:        n.Thread,
		TextHTML:      h.text.Render(n.Text),
		AuthorProfile: n.AuthorProfile,
	}
	if n.Replies != nil {
		resp.Replies = h.toThreadResponses(n.Replies)
	}
	return resp
}

func (h *Handler) toThreadResponses(nodes []*domain.ThreadNode) []*api.ThreadResponse {
	out := make([]*api.ThreadResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, h.toThreadResponse(n))
	}
	return out
}

func threadPath(id domain.ThreadId) string {
	return fmt.Sprintf("/thread/%s", id)
}
