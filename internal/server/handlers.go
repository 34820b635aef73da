package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/amansour/techsouk/internal/auth"
	"github.com/amansour/techsouk/internal/catalog"
	"github.com/amansour/techsouk/internal/repository"
	"github.com/amansour/techsouk/internal/service"
	"github.com/amansour/techsouk/internal/session"
)

// maxImageUploadBytes bounds image search uploads.
const maxImageUploadBytes = 10 << 20

// handlers holds the HTTP handler dependencies
type handlers struct {
	search        *service.SearchService
	accounts      *service.AccountService
	savedSearches *service.SavedSearchService
	sessions      *session.Store
	logger        *slog.Logger
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type loginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type searchRequest struct {
	Query    string  `json:"query"`
	Budget   float64 `json:"budget"`
	MaxPrice float64 `json:"max_price,omitempty"`
	Category string  `json:"category,omitempty"`
	Color    string  `json:"color,omitempty"`
}

type imageSearchRequest struct {
	ImageBase64 string  `json:"image_base64"`
	Budget      float64 `json:"budget"`
	MaxPrice    float64 `json:"max_price,omitempty"`
	Category    string  `json:"category,omitempty"`
	Color       string  `json:"color,omitempty"`
}

type pageRequest struct {
	Direction string `json:"direction"`
}

type savedSearchRequest struct {
	Name     string                   `json:"name"`
	Filters  repository.SearchFilters `json:"filters"`
	Keywords string                   `json:"keywords"`
}

type savedSearchResponse struct {
	ID         string                   `json:"id"`
	Name       string                   `json:"name"`
	Filters    repository.SearchFilters `json:"filters"`
	Keywords   string                   `json:"keywords"`
	CreatedAt  string                   `json:"created_at"`
	LastUsed   string                   `json:"last_used,omitempty"`
	IsFavorite bool                     `json:"is_favorite"`
}

type useSavedSearchResponse struct {
	SavedSearch savedSearchResponse   `json:"saved_search"`
	Results     *service.SearchResult `json:"results"`
}

type compareToggleRequest struct {
	Product catalog.Product `json:"product"`
}

type compareResponse struct {
	Items []session.CompareItem `json:"items"`
	Count int                   `json:"count"`
	Max   int                   `json:"max"`
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{
		UserID: user.ID.String(),
		Email:  user.Email,
	})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:  token,
		UserID: user.ID.String(),
		Email:  user.Email,
	})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	if err := h.accounts.Logout(r.Context(), identity.SessionID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		UserID: identity.UserID.String(),
		Email:  identity.Email,
	})
}

func (h *handlers) searchText(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.search.SearchText(r.Context(), identity.SessionID.String(),
		req.Query, req.Budget, filterFromRequest(req.MaxPrice, req.Category, req.Color))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) searchImage(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	image, budget, filter, err := decodeImageSearch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.search.SearchImage(r.Context(), identity.SessionID.String(), image, budget, filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// decodeImageSearch accepts either a multipart upload (file field "image"
// plus form fields) or a JSON body with base64 image data.
func decodeImageSearch(r *http.Request) ([]byte, float64, catalog.Filter, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
			return nil, 0, catalog.Filter{}, errors.New("invalid multipart body")
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, 0, catalog.Filter{}, errors.New("image file is required")
		}
		defer file.Close()
		image, err := io.ReadAll(io.LimitReader(file, maxImageUploadBytes))
		if err != nil {
			return nil, 0, catalog.Filter{}, errors.New("failed to read image")
		}

		budget, _ := strconv.ParseFloat(r.FormValue("budget"), 64)
		maxPrice, _ := strconv.ParseFloat(r.FormValue("max_price"), 64)
		return image, budget, filterFromRequest(maxPrice, r.FormValue("category"), r.FormValue("color")), nil
	}

	var req imageSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, 0, catalog.Filter{}, errors.New("invalid JSON body")
	}
	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		return nil, 0, catalog.Filter{}, errors.New("image_base64 is not valid base64")
	}
	return image, req.Budget, filterFromRequest(req.MaxPrice, req.Category, req.Color), nil
}

func (h *handlers) searchPage(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.search.Page(r.Context(), identity.SessionID.String(),
		service.PageDirection(req.Direction))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) createSavedSearch(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req savedSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	search, err := h.savedSearches.Create(r.Context(), identity.UserID, req.Name, req.Filters, req.Keywords)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSavedSearchResponse(search))
}

func (h *handlers) listSavedSearches(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	searches, err := h.savedSearches.List(r.Context(), identity.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]savedSearchResponse, 0, len(searches))
	for _, s := range searches {
		out = append(out, toSavedSearchResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved_searches": out})
}

func (h *handlers) deleteSavedSearch(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid saved search ID")
		return
	}

	if err := h.savedSearches.Delete(r.Context(), identity.UserID, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid saved search ID")
		return
	}

	favorite, err := h.savedSearches.ToggleFavorite(r.Context(), identity.UserID, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"is_favorite": favorite})
}

func (h *handlers) useSavedSearch(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid saved search ID")
		return
	}

	search, err := h.savedSearches.Use(r.Context(), identity.UserID, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	// Re-run the stored search as the session's fresh active search, so
	// paging starts from page one.
	result, err := h.search.SearchText(r.Context(), identity.SessionID.String(),
		search.Filters.Query, search.Filters.Budget,
		filterFromRequest(0, search.Filters.Category, search.Filters.Color))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, useSavedSearchResponse{
		SavedSearch: toSavedSearchResponse(search),
		Results:     result,
	})
}

func (h *handlers) compareList(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	h.writeCompare(w, identity.SessionID.String())
}

func (h *handlers) compareToggle(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	productID := chi.URLParam(r, "productID")
	if productID == "" {
		writeError(w, http.StatusBadRequest, "product ID is required")
		return
	}

	// The body carries the product snapshot for display; it may be empty
	// when toggling an item off.
	var req compareToggleRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if _, err := h.sessions.ToggleCompare(identity.SessionID.String(), productID, req.Product); err != nil {
		if errors.Is(err, session.ErrCompareFull) {
			writeError(w, http.StatusConflict, "comparison list is full")
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	h.writeCompare(w, identity.SessionID.String())
}

func (h *handlers) compareClear(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	h.sessions.ClearCompare(identity.SessionID.String())
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) writeCompare(w http.ResponseWriter, sessionID string) {
	items := h.sessions.CompareList(sessionID)
	if items == nil {
		items = []session.CompareItem{}
	}
	writeJSON(w, http.StatusOK, compareResponse{
		Items: items,
		Count: len(items),
		Max:   session.DefaultMaxCompare,
	})
}

// writeServiceError maps service errors onto HTTP status codes.
func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrNameTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrSavedSearchNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNoActiveSearch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrSourceUnavailable):
		writeError(w, http.StatusBadGateway, "product catalog is unavailable")
	case errors.Is(err, service.ErrEmbedderUnavailable):
		writeError(w, http.StatusBadGateway, "embedding service is unavailable")
	default:
		h.logger.Error("request failed",
			"path", r.URL.Path,
			"error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func filterFromRequest(maxPrice float64, category, color string) catalog.Filter {
	return catalog.Filter{
		MaxPrice: maxPrice,
		Category: category,
		Color:    color,
	}
}

func toSavedSearchResponse(s *repository.SavedSearch) savedSearchResponse {
	resp := savedSearchResponse{
		ID:         s.ID.String(),
		Name:       s.Name,
		Filters:    s.Filters,
		Keywords:   s.Keywords,
		CreatedAt:  s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		IsFavorite: s.IsFavorite,
	}
	if s.LastUsed != nil {
		resp.LastUsed = s.LastUsed.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
