package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Sternrassler/character-catalog/pkg/browse"
	"github.com/Sternrassler/character-catalog/pkg/catalog"
	"github.com/Sternrassler/character-catalog/pkg/filter"
)

type filtersBody struct {
	Page   int    `json:"page"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
}

type errorBody struct {
	Message    string `json:"message"`
	Class      string `json:"class,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// PageResponse is the JSON snapshot of one page key.
type PageResponse struct {
	Data        *catalog.PageResult `json:"data"`
	IsLoading   bool                `json:"isLoading"`
	IsFetching  bool                `json:"isFetching"`
	IsError     bool                `json:"isError"`
	Error       *errorBody          `json:"error"`
	Placeholder bool                `json:"placeholder"`
	Filters     filtersBody         `json:"filters"`
	PageBound   *int                `json:"pageBound"`
	UpdatedAt   *time.Time          `json:"updatedAt,omitempty"`
}

// CharacterResponse is the JSON body of a single character.
type CharacterResponse struct {
	Data    *catalog.Character `json:"data"`
	IsError bool               `json:"isError"`
	Error   *errorBody         `json:"error"`
}

func newPageResponse(state filter.State, v browse.PageView, bound int, hasBound bool) PageResponse {
	resp := PageResponse{
		IsLoading:   v.IsLoading,
		IsFetching:  v.IsFetching,
		IsError:     v.IsError,
		Placeholder: v.Placeholder,
		Filters: filtersBody{
			Page:   state.Page,
			Name:   state.Name,
			Status: string(state.Status),
		},
	}
	if v.HasData {
		data := v.Data
		resp.Data = &data
	}
	if v.IsError {
		resp.Error = errorFrom(v.Err)
	}
	if hasBound {
		resp.PageBound = &bound
	}
	if !v.UpdatedAt.IsZero() {
		at := v.UpdatedAt
		resp.UpdatedAt = &at
	}
	return resp
}

func errorFrom(err error) *errorBody {
	if err == nil {
		return &errorBody{Message: "unknown error"}
	}
	body := &errorBody{Message: err.Error()}
	var te *catalog.TransportError
	if errors.As(err, &te) {
		body.Class = string(te.Class)
		body.StatusCode = te.StatusCode
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var body struct {
		Error struct {
			Code      string `json:"code"`
			Message   string `json:"message"`
			RequestID string `json:"requestId,omitempty"`
		} `json:"error"`
	}
	body.Error.Code = code
	body.Error.Message = message
	body.Error.RequestID = middleware.GetReqID(r.Context())
	writeJSON(w, status, body)
}
