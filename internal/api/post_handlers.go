package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/forcessl/forcessl/internal/api/middleware"
	"github.com/forcessl/forcessl/internal/database/models"
	"github.com/forcessl/forcessl/internal/restapi"
	"github.com/go-chi/chi/v5"
)

// restDateFormat is the REST API's date layout (no zone suffix).
const restDateFormat = "2006-01-02T15:04:05"

// postRequest is the JSON request body for creating a post.
type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt"`
	Slug    string `json:"slug"`
	Status  string `json:"status"`
}

type rendered struct {
	Rendered string `json:"rendered"`
}

type renderedProtected struct {
	Rendered  string `json:"rendered"`
	Protected bool   `json:"protected"`
}

// postResponse is the JSON response for a single post.
type postResponse struct {
	ID          int64             `json:"id"`
	Date        string            `json:"date"`
	DateGMT     string            `json:"date_gmt"`
	GUID        rendered          `json:"guid"`
	Modified    string            `json:"modified"`
	ModifiedGMT string            `json:"modified_gmt"`
	Slug        string            `json:"slug"`
	Status      string            `json:"status"`
	Type        string            `json:"type"`
	Link        string            `json:"link"`
	Title       rendered          `json:"title"`
	Content     renderedProtected `json:"content"`
	Excerpt     renderedProtected `json:"excerpt"`
	Author      int64             `json:"author"`
}

// deleteResponse is the JSON response for a forced delete.
type deleteResponse struct {
	Deleted  bool         `json:"deleted"`
	Previous postResponse `json:"previous"`
}

// toPostResponse converts a models.Post to the API response.
func toPostResponse(p *models.Post, site string) postResponse {
	created := p.CreatedAt.UTC().Format(restDateFormat)
	modified := p.UpdatedAt.UTC().Format(restDateFormat)
	return postResponse{
		ID:          p.ID,
		Date:        created,
		DateGMT:     created,
		GUID:        rendered{Rendered: p.GUID},
		Modified:    modified,
		ModifiedGMT: modified,
		Slug:        p.Slug,
		Status:      p.Status,
		Type:        "post",
		Link:        site + "/" + p.Slug + "/",
		Title:       rendered{Rendered: p.Title},
		Content:     renderedProtected{Rendered: p.Content},
		Excerpt:     renderedProtected{Rendered: p.Excerpt},
		Author:      p.AuthorID,
	}
}

// postID parses the {id} URL parameter. The route pattern guarantees digits.
func postID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// handleListPosts returns published posts, newest first.
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, "rest_invalid_param", errMsg)
		return
	}

	posts, total, err := s.posts.List(r.Context(), models.PostQuery{
		Search: r.URL.Query().Get("search"),
		Status: models.PostStatusPublish,
		Limit:  pg.PerPage,
		Offset: pg.Offset(),
	})
	if err != nil {
		slog.Error("list posts: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "rest_internal_error", "internal error")
		return
	}

	pages := totalPages(total, pg.PerPage)
	if pg.Page > 1 && int64(pg.Page) > pages {
		writeError(w, http.StatusBadRequest, "rest_post_invalid_page_number",
			"The page number requested is larger than the number of pages available.")
		return
	}

	site := s.siteURL(r)
	out := make([]postResponse, len(posts))
	for i := range posts {
		out[i] = toPostResponse(&posts[i], site)
	}

	w.Header().Set("X-WP-Total", strconv.FormatInt(total, 10))
	w.Header().Set("X-WP-TotalPages", strconv.FormatInt(pages, 10))
	writeJSON(w, http.StatusOK, out)
}

// handleGetPost returns a single published post.
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "rest_post_invalid_id", "Invalid post ID.")
		return
	}

	post, err := s.posts.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("get post: failed to query", "error", err, "post_id", id)
		writeError(w, http.StatusInternalServerError, "rest_internal_error", "internal error")
		return
	}
	if post == nil || post.Status != models.PostStatusPublish {
		writeError(w, http.StatusNotFound, "rest_post_invalid_id", "Invalid post ID.")
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(post, s.siteURL(r)))
}

// handleCreatePost creates a post authored by the bearer token's user.
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, "rest_invalid_json", errMsg)
		return
	}
	if errMsg := validatePostRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, "rest_invalid_param", errMsg)
		return
	}

	user := middleware.APIUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "rest_not_logged_in", "you are not currently logged in")
		return
	}

	post := &models.Post{
		Title:    req.Title,
		Content:  req.Content,
		Excerpt:  req.Excerpt,
		Slug:     req.Slug,
		Status:   req.Status,
		AuthorID: user.ID,
	}
	if err := s.posts.Create(r.Context(), post); err != nil {
		slog.Error("create post: failed to insert", "error", err)
		writeError(w, http.StatusInternalServerError, "rest_internal_error", "internal error")
		return
	}

	slog.Info("post created", "post_id", post.ID, "author", user.Username, "status", post.Status)

	site := s.siteURL(r)
	w.Header().Set("Location", fmt.Sprintf("%s%s/%s/posts/%d", site, restapi.Prefix, restapi.NamespaceCore, post.ID))
	writeJSON(w, http.StatusCreated, toPostResponse(post, site))
}

// handleDeletePost permanently deletes a post. Posts have no trash, so
// force=true is required.
func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "rest_post_invalid_id", "Invalid post ID.")
		return
	}

	if force, _ := strconv.ParseBool(r.URL.Query().Get("force")); !force {
		writeError(w, http.StatusNotImplemented, "rest_trash_not_supported",
			"Posts do not support trashing. Set 'force=true' to delete.")
		return
	}

	post, err := s.posts.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("delete post: failed to query", "error", err, "post_id", id)
		writeError(w, http.StatusInternalServerError, "rest_internal_error", "internal error")
		return
	}
	if post == nil {
		writeError(w, http.StatusNotFound, "rest_post_invalid_id", "Invalid post ID.")
		return
	}

	deleted, err := s.posts.Delete(r.Context(), id)
	if err != nil {
		slog.Error("delete post: failed to delete", "error", err, "post_id", id)
		writeError(w, http.StatusInternalServerError, "rest_internal_error", "internal error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "rest_post_invalid_id", "Invalid post ID.")
		return
	}

	slog.Info("post deleted", "post_id", id, "deleted_at", time.Now().UTC().Format(time.RFC3339))
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: true, Previous: toPostResponse(post, s.siteURL(r))})
}
