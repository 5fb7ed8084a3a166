package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owlet-labs/owletsync/internal/schema"
)

func TestSelectOrderAndAuth(t *testing.T) {
	var gotPath, gotOrder, gotKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotOrder = r.URL.Query().Get("order")
		gotKey = r.Header.Get("apikey")
		_ = json.NewEncoder(w).Encode([]schema.Lesson{
			{ID: "l1", Title: "Addition"},
			{ID: "l2", Title: "Subtraction"},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key", nil)

	var lessons []schema.Lesson
	err := client.Select(context.Background(), "lessons", Order{Column: "title"}, &lessons)
	require.NoError(t, err)

	assert.Equal(t, "/rest/v1/lessons", gotPath)
	assert.Equal(t, "title.asc", gotOrder)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, lessons, 2)
	assert.Equal(t, "Addition", lessons[0].Title)
}

func TestSelectDescendingOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "completedat.desc", r.URL.Query().Get("order"))
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	client := New(srv.URL, "k", nil)
	var logs []schema.LessonLog
	err := client.Select(context.Background(), "lessonlogs", Order{Column: "completedat", Descending: true}, &logs)
	require.NoError(t, err)
}

func TestInsertSendsJSONBody(t *testing.T) {
	var gotMethod, gotContentType string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := New(srv.URL, "k", nil)
	log := schema.LessonLog{
		ID:          "log-1",
		ChildID:     schema.NewChildID("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		LessonID:    "l1",
		CompletedAt: "2026-08-29T10:00:00Z",
	}
	err := client.Insert(context.Background(), "lessonlogs", log)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "l1", gotBody["lessonid"])
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", gotBody["childid"])
}

func TestUpdateTargetsPrimaryKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.log-1", r.URL.Query().Get("id"))
	}))
	defer srv.Close()

	client := New(srv.URL, "k", nil)
	err := client.Update(context.Background(), "lessonlogs", "log-1", map[string]int{"score": 90})
	require.NoError(t, err)
}

func TestDeleteTargetsPrimaryKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "eq.log-2", r.URL.Query().Get("id"))
	}))
	defer srv.Close()

	client := New(srv.URL, "k", nil)
	err := client.Delete(context.Background(), "lessonlogs", "log-2")
	require.NoError(t, err)
}

func TestUpsertSetsConflictColumnAndPrefer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "email", r.URL.Query().Get("on_conflict"))
		assert.Equal(t, "resolution=merge-duplicates", r.Header.Get("Prefer"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := New(srv.URL, "k", nil)
	err := client.Upsert(context.Background(), "parents", "email",
		schema.ParentProfile{Email: "parent@example.com"})
	require.NoError(t, err)
}

func TestErrorResponseMapsToAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"permission denied"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	client := New(srv.URL, "k", nil)
	var lessons []schema.Lesson
	err := client.Select(context.Background(), "lessons", Order{Column: "title"}, &lessons)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "permission denied")
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "/rest/v1/", r.URL.Path)
	}))
	defer srv.Close()

	client := New(srv.URL, "k", nil)
	assert.NoError(t, client.Health(context.Background()))
}

func TestHealthServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(srv.URL, "k", nil)
	assert.Error(t, client.Health(context.Background()))
}
