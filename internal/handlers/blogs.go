package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/bloglist/apiserver/internal/services"
	"github.com/bloglist/apiserver/types"
)

// BlogHandler provides HTTP handlers for blogs.
type BlogHandler struct {
	blogService    *services.BlogService
	listingService *services.ListingService
	logger         logrus.FieldLogger
}

// NewBlogHandler constructs a handler with the provided services.
func NewBlogHandler(blogService *services.BlogService, listingService *services.ListingService, logger logrus.FieldLogger) *BlogHandler {
	return &BlogHandler{
		blogService:    blogService,
		listingService: listingService,
		logger:         logger,
	}
}

// BlogRouter registers blog routes on the given router. Sessions are
// optional except where a route requires one.
func BlogRouter(r chi.Router, handler *BlogHandler) {
	r.Get("/", handler.ListBlogs)
	r.With(RequireSession).Post("/", handler.CreateBlog)
	r.Route("/{blogID}", func(r chi.Router) {
		r.Get("/", handler.GetBlog)
		r.Put("/", handler.UpdateBlog)
		r.With(RequireSession).Delete("/", handler.DeleteBlog)
		r.Post("/like", handler.LikeBlog)
	})
}

func (h *BlogHandler) ListBlogs(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listingService.ListOrderedByLikes(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list blogs")
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *BlogHandler) GetBlog(w http.ResponseWriter, r *http.Request) {
	id, err := parseBlogID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	blog, err := h.blogService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to fetch blog")
		return
	}
	writeJSON(w, http.StatusOK, blog)
}

func (h *BlogHandler) CreateBlog(w http.ResponseWriter, r *http.Request) {
	var req CreateBlogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	blog, err := h.blogService.Create(r.Context(), sessionFromContext(r.Context()), req.Title, req.Author, req.URL)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to create blog")
		return
	}
	writeJSON(w, http.StatusCreated, blog)
}

func (h *BlogHandler) UpdateBlog(w http.ResponseWriter, r *http.Request) {
	id, err := parseBlogID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateBlogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	blog, err := h.blogService.Update(r.Context(), sessionFromContext(r.Context()), id, types.BlogPatch{
		Title:  req.Title,
		Author: req.Author,
		URL:    req.URL,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to update blog")
		return
	}
	writeJSON(w, http.StatusOK, blog)
}

func (h *BlogHandler) LikeBlog(w http.ResponseWriter, r *http.Request) {
	id, err := parseBlogID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	blog, err := h.blogService.ToggleLike(r.Context(), sessionFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to like blog")
		return
	}
	writeJSON(w, http.StatusOK, blog)
}

func (h *BlogHandler) DeleteBlog(w http.ResponseWriter, r *http.Request) {
	id, err := parseBlogID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.blogService.Delete(r.Context(), sessionFromContext(r.Context()), id); err != nil {
		writeServiceError(w, r, h.logger, err, "failed to delete blog")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type CreateBlogRequest struct {
	Title  string `json:"title" validate:"required"`
	Author string `json:"author"`
	URL    string `json:"url" validate:"required"`
}

// UpdateBlogRequest carries a partial update. Omitted fields stay as they
// are.
type UpdateBlogRequest struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
	URL    *string `json:"url"`
}
