package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/sakif/videotube/internal/apperror"
	"github.com/sakif/videotube/internal/auth"
	"github.com/sakif/videotube/internal/schema"
	"github.com/sakif/videotube/internal/store"
)

// Query parameters with a meaning of their own; every other parameter on a
// list request is an equality filter.
const (
	paramLimit    = "limit"
	paramOffset   = "offset"
	paramPopulate = "populate"
)

// Resource exposes one collection over HTTP:
//
//	GET    /              list, filtered by query parameters
//	GET    /{id}          fetch, optionally with ?populate=field
//	POST   /              create
//	PATCH  /{id}          partial update
//	DELETE /{id}          delete
//
// actorField names the reference that identifies who a document belongs
// to ("owner", "likedBy", "subscriber"). On create it defaults to the
// authenticated user, and only that user may update or delete the
// document. An empty actorField disables both.
type Resource[T any] struct {
	coll       *store.Collection[T]
	actorField string
	logger     logrus.FieldLogger
}

func NewResource[T any](coll *store.Collection[T], actorField string, logger logrus.FieldLogger) *Resource[T] {
	return &Resource[T]{
		coll:       coll,
		actorField: actorField,
		logger:     logger.WithField("resource", coll.Name()),
	}
}

// Name is the collection name, used as the route prefix.
func (h *Resource[T]) Name() string {
	return h.coll.Name()
}

// HandleList serves GET /{collection}.
func (h *Resource[T]) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, opts, err := h.parseListQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	docs, err := h.coll.Find(r.Context(), filter, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		m, err := h.present(doc)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, m)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet serves GET /{collection}/{id}.
func (h *Resource[T]) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := h.coll.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if doc == nil {
		writeError(w, apperror.NotFound(h.coll.Name(), id))
		return
	}

	if field := r.URL.Query().Get(paramPopulate); field != "" {
		populated, err := h.coll.Populate(r.Context(), *doc, field)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, populated)
		return
	}

	m, err := h.present(*doc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleCreate serves POST /{collection}.
func (h *Resource[T]) HandleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.coll.Schema().CheckUnknown(body); err != nil {
		writeError(w, err)
		return
	}

	if h.actorField != "" {
		userID, _ := auth.UserIDFromContext(r.Context())
		switch body[h.actorField] {
		case nil, "":
			body[h.actorField] = userID
		case userID:
		default:
			writeError(w, apperror.Forbidden(
				fmt.Sprintf("%s must be the authenticated user", h.actorField)))
			return
		}
	}

	doc, err := decodeDocument[T](body)
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := h.coll.Create(r.Context(), doc)
	if err != nil {
		writeError(w, err)
		return
	}

	m, err := h.present(*created)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// HandleUpdate serves PATCH /{collection}/{id}. The body is a patch: keys
// present are set, null clears a field.
func (h *Resource[T]) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := decodeBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.authorize(r, id); err != nil {
		writeError(w, err)
		return
	}
	if h.actorField != "" {
		if _, ok := body[h.actorField]; ok {
			writeError(w, apperror.Forbidden(fmt.Sprintf("%s cannot be changed", h.actorField)))
			return
		}
	}

	updated, err := h.coll.FindByIDAndUpdate(r.Context(), id, store.Patch(body))
	if err != nil {
		writeError(w, err)
		return
	}
	if updated == nil {
		writeError(w, apperror.NotFound(h.coll.Name(), id))
		return
	}

	m, err := h.present(*updated)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleDelete serves DELETE /{collection}/{id}.
func (h *Resource[T]) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.authorize(r, id); err != nil {
		writeError(w, err)
		return
	}

	deleted, err := h.coll.FindByIDAndDelete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, apperror.NotFound(h.coll.Name(), id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// authorize checks that the caller owns document id. A document with no
// owner is Forbidden to everyone. Missing documents pass, so the operation
// itself reports not-found.
func (h *Resource[T]) authorize(r *http.Request, id string) error {
	if h.actorField == "" {
		return nil
	}

	doc, err := h.coll.FindByID(r.Context(), id)
	if err != nil || doc == nil {
		return err
	}
	m, err := toMap(*doc)
	if err != nil {
		return err
	}

	actor, _ := m[h.actorField].(string)
	userID, _ := auth.UserIDFromContext(r.Context())
	if actor == "" {
		h.logger.WithFields(logrus.Fields{
			"id":     id,
			"userID": userID,
		}).Warn("rejected change to an unowned document")
		return apperror.Forbidden(fmt.Sprintf("%s %s has no %s and cannot be changed over the API", h.coll.Name(), id, h.actorField))
	}
	if actor != userID {
		h.logger.WithFields(logrus.Fields{
			"id":     id,
			"userID": userID,
		}).Warn("rejected change to another user's document")
		return apperror.Forbidden(fmt.Sprintf("%s %s belongs to another user", h.coll.Name(), id))
	}
	return nil
}

func (h *Resource[T]) parseListQuery(r *http.Request) (store.Filter, store.ListOptions, error) {
	var opts store.ListOptions
	filter := store.Filter{}

	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		raw := values[0]

		switch key {
		case paramLimit, paramOffset:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, opts, apperror.ValidationFailed(key, fmt.Sprintf("%s must be an integer", key))
			}
			if key == paramLimit {
				opts.Limit = n
			} else {
				opts.Offset = n
			}
		case paramPopulate:
		default:
			v, err := h.filterValue(key, raw)
			if err != nil {
				return nil, opts, err
			}
			filter[key] = v
		}
	}
	return filter, opts, nil
}

// filterValue converts a query string value to the field's type. Unknown
// keys stay strings; the store rejects them.
func (h *Resource[T]) filterValue(key, raw string) (any, error) {
	f, ok := h.coll.Schema().Field(key)
	if !ok {
		return raw, nil
	}
	switch f.Type {
	case schema.Number:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, apperror.ValidationFailed(key, fmt.Sprintf("%s must be a number", key))
		}
		return n, nil
	case schema.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, apperror.ValidationFailed(key, fmt.Sprintf("%s must be a boolean", key))
		}
		return b, nil
	}
	return raw, nil
}

// present converts doc to its response form, without hidden fields.
func (h *Resource[T]) present(doc T) (map[string]any, error) {
	m, err := toMap(doc)
	if err != nil {
		return nil, err
	}
	h.coll.Schema().Redact(m)
	return m, nil
}

func toMap(doc any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("handler: encoding document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("handler: encoding document: %w", err)
	}
	return m, nil
}

// decodeDocument converts a request body into T. A value of the wrong JSON
// type becomes a ValidationError on that field.
func decodeDocument[T any](body map[string]any) (T, error) {
	var doc T
	data, err := json.Marshal(body)
	if err != nil {
		return doc, apperror.ValidationFailed("", fmt.Sprintf("invalid document: %v", err))
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return doc, apperror.ValidationFailed(typeErr.Field,
				fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type))
		}
		return doc, apperror.ValidationFailed("", fmt.Sprintf("invalid document: %v", err))
	}
	return doc, nil
}
