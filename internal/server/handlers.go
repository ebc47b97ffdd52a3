package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Sternrassler/character-catalog/pkg/browse"
	"github.com/Sternrassler/character-catalog/pkg/cache"
	"github.com/Sternrassler/character-catalog/pkg/catalog"
	"github.com/Sternrassler/character-catalog/pkg/filter"
)

// handleList serves GET /characters?page=&name=&status=&wait=.
// With wait=false the current snapshot is returned without waiting for an
// issued fetch.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	state := filter.FromValues(r.URL.Query())

	sess, release := s.session(r)
	defer release()

	v := sess.Show(state)
	if queryBool(r, "wait", true) && v.IsFetching {
		v = s.await(r.Context(), sess, state)
	}
	s.writePage(w, sess, state, v)
}

// handleRefresh serves POST /characters/refresh. The page is invalidated and
// fetched again; its payload stays visible while the fetch runs.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	state := filter.FromValues(r.URL.Query())

	sess, release := s.session(r)
	defer release()

	sess.Show(state)
	v := sess.Refetch()
	if queryBool(r, "wait", true) && v.IsFetching {
		v = s.await(r.Context(), sess, state)
	}
	s.writePage(w, sess, state, v)
}

// handleCharacter serves GET /characters/{id}.
func (s *Server) handleCharacter(w http.ResponseWriter, r *http.Request) {
	id, err := catalog.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}

	if queryBool(r, "refresh", false) {
		s.collection.InvalidateEntity(id)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.WaitTimeout)
	defer cancel()

	c, err := s.collection.LoadEntity(ctx, id)
	if err != nil && c.ID > 0 {
		// keep showing the last good character
		writeJSON(w, http.StatusOK, CharacterResponse{Data: &c, IsError: true, Error: errorFrom(err)})
		return
	}
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		case catalog.ClassOf(err) == catalog.ErrorClassRateLimit:
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, CharacterResponse{IsError: true, Error: errorFrom(err)})
		return
	}
	writeJSON(w, http.StatusOK, CharacterResponse{Data: &c})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.opts.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.WaitTimeout)
		defer cancel()
		if err := s.opts.Pinger.Ping(ctx); err != nil {
			writeError(w, r, http.StatusServiceUnavailable, "catalog_unreachable", err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// await waits for the page of state to resolve, bounded by WaitTimeout, and
// returns the session's view of it.
func (s *Server) await(ctx context.Context, sess *browse.Session, state filter.State) browse.PageView {
	ctx, cancel := context.WithTimeout(ctx, s.opts.WaitTimeout)
	defer cancel()

	// the outcome, error included, is read from the view
	_, _ = s.collection.LoadPage(ctx, state)
	return sess.Current()
}

func (s *Server) writePage(w http.ResponseWriter, sess *browse.Session, state filter.State, v browse.PageView) {
	state = filter.NormalizeState(state)
	if v.Key != cache.KeyFor(state) {
		// another request moved the slot on; report the key's own snapshot
		v = viewOf(s.collection.PeekPage(state))
	}

	bound, hasBound := sess.PageBound()
	if cur, ok := sess.State(); !ok || !cur.SameConstraints(state) {
		bound, hasBound = 0, false
		if v.HasData && !v.Placeholder {
			bound, hasBound = v.Data.Info.Pages, true
		}
	}

	status := http.StatusOK
	if v.IsError && !v.HasData {
		status = http.StatusBadGateway
		if catalog.ClassOf(v.Err) == catalog.ErrorClassRateLimit {
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, newPageResponse(state, v, bound, hasBound))
}

func viewOf(snap cache.Snapshot[catalog.PageResult]) browse.PageView {
	return browse.PageView{
		Key:        snap.Key,
		Data:       snap.Data,
		HasData:    snap.HasData,
		IsFetching: snap.Status == cache.StatusPending,
		IsLoading:  snap.Status == cache.StatusPending && !snap.HasData,
		IsError:    snap.Status == cache.StatusError,
		Err:        snap.Err,
		UpdatedAt:  snap.UpdatedAt,
	}
}

func queryBool(r *http.Request, name string, def bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
