package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pixeon-io/pixeon/internal/auth"
	"github.com/pixeon-io/pixeon/internal/common"
	"github.com/pixeon-io/pixeon/internal/detection"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (api *Api) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := api.deps.Auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// LoginHandler accepts either a JSON body or an OAuth2-style password form.
func (api *Api) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			writeJSONError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	token, err := api.deps.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (api *Api) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		auth.Unauthorized(w, common.ErrAuth.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (api *Api) DetectHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		auth.Unauthorized(w, common.ErrAuth.Error())
		return
	}

	maxBytes := api.deps.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusBadRequest, "file too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	// one byte past the limit is enough for the validator to reject it
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	result, err := api.deps.Detection.Run(r.Context(), user, detection.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (api *Api) ListHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		auth.Unauthorized(w, common.ErrAuth.Error())
		return
	}

	skip, err := queryInt(r, "skip", 0)
	if err != nil || skip < 0 {
		writeJSONError(w, http.StatusBadRequest, "skip must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil || limit < 1 {
		writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := api.deps.History.List(r.Context(), user.ID, skip, limit)
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (api *Api) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		auth.Unauthorized(w, common.ErrAuth.Error())
		return
	}

	record, err := api.deps.History.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		api.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (api *Api) DeleteHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		auth.Unauthorized(w, common.ErrAuth.Error())
		return
	}

	if err := api.deps.History.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		api.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
