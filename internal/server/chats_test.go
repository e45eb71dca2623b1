package server

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"

	"github.com/pmcompanion/pmcompanion/internal/store"
)

const (
	testUser = "5a3c9c0e-8a3f-4a1e-9a34-2f6ab0a4d101"
	testChat = "0b8a52d4-6a4f-4f6e-8d62-9c1d4bb1c001"
)

func newTestContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", testUser)
	return c, rec
}

func newMockStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &store.Store{DB: db}, mock
}

func expectPin(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT set_config('app.user_id', $1, true)`)).
		WithArgs(testUser).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func TestCreateChatEndpoint(t *testing.T) {
	st, mock := newMockStore(t)
	h := &ChatsHandler{Store: st}
	now := time.Now()

	expectPin(mock)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO chat_instances`)).
		WithArgs("Lease Review", store.CategoryLease, "assessment").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "workflow_phase", "user_id", "created_at", "updated_at"}).
			AddRow("chat-1", "Lease Review", store.CategoryLease, "assessment", testUser, now, now))
	mock.ExpectCommit()

	c, rec := newTestContext(t, http.MethodPost, "/api/chats",
		`{"name":"Lease Review","category":"Lease & Contracts"}`)
	if err := h.create(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"workflow_phase":"assessment"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateChatEndpointBadCategory(t *testing.T) {
	st, _ := newMockStore(t)
	h := &ChatsHandler{Store: st}

	c, _ := newTestContext(t, http.MethodPost, "/api/chats",
		`{"name":"Pets","category":"Pets"}`)
	err := h.create(c)
	if code := httpStatus(t, err); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestGetChatEndpointNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	h := &ChatsHandler{Store: st}

	expectPin(mock)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM chat_instances`)).
		WithArgs(testChat).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "workflow_phase", "user_id", "created_at", "updated_at"}))
	mock.ExpectCommit()

	c, _ := newTestContext(t, http.MethodGet, "/api/chats/"+testChat, "")
	c.SetParamNames("id")
	c.SetParamValues(testChat)
	err := h.get(c)
	if code := httpStatus(t, err); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestChatEndpointsMalformedID(t *testing.T) {
	st, mock := newMockStore(t)
	h := &ChatsHandler{Store: st}

	// a non-uuid id is indistinguishable from an absent chat and the
	// database is never consulted
	handlers := map[string]func(echo.Context) error{
		"get":           h.get,
		"delete":        h.delete,
		"list messages": h.listMessages,
		"list drafts":   h.listDrafts,
		"list plans":    h.listPlans,
	}
	for name, fn := range handlers {
		c, _ := newTestContext(t, http.MethodGet, "/api/chats/not-a-uuid", "")
		c.SetParamNames("id")
		c.SetParamValues("not-a-uuid")
		err := fn(c)
		if code := httpStatus(t, err); code != http.StatusNotFound {
			t.Errorf("%s: expected 404 for malformed id, got %d", name, code)
		}
	}
	c, _ := newTestContext(t, http.MethodPatch, "/api/chats/not-a-uuid/phase",
		`{"workflow_phase":"drafting"}`)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	if code := httpStatus(t, h.updatePhase(c)); code != http.StatusNotFound {
		t.Errorf("update phase: expected 404 for malformed id, got %d", code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddMessageEndpointDenied(t *testing.T) {
	st, mock := newMockStore(t)
	h := &ChatsHandler{Store: st}

	expectPin(mock)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO chat_messages`)).
		WithArgs("chat-foreign", store.RoleUser, "hi").
		WillReturnError(&pq.Error{Code: "42501", Message: "new row violates row-level security policy"})
	mock.ExpectRollback()

	c, _ := newTestContext(t, http.MethodPost, "/api/chats/chat-foreign/messages",
		`{"role":"user","content":"hi"}`)
	c.SetParamNames("id")
	c.SetParamValues("chat-foreign")
	err := h.addMessage(c)
	if code := httpStatus(t, err); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddDraftEndpointMissingChat(t *testing.T) {
	st, mock := newMockStore(t)
	h := &ChatsHandler{Store: st}

	expectPin(mock)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO email_drafts`)).
		WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint"})
	mock.ExpectRollback()

	c, _ := newTestContext(t, http.MethodPost, "/api/chats/chat-gone/drafts",
		`{"body":"Dear tenant,"}`)
	c.SetParamNames("id")
	c.SetParamValues("chat-gone")
	err := h.addDraft(c)
	if code := httpStatus(t, err); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListChatsEndpointEmpty(t *testing.T) {
	st, mock := newMockStore(t)
	h := &ChatsHandler{Store: st}

	expectPin(mock)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM chat_instances c`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "workflow_phase", "user_id", "created_at", "updated_at", "message_count"}))
	mock.ExpectCommit()

	c, rec := newTestContext(t, http.MethodGet, "/api/chats", "")
	if err := h.list(c); err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteChatEndpoint(t *testing.T) {
	st, mock := newMockStore(t)
	h := &ChatsHandler{Store: st}

	expectPin(mock)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM chat_instances WHERE id=$1`)).
		WithArgs(testChat).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := newTestContext(t, http.MethodDelete, "/api/chats/"+testChat, "")
	c.SetParamNames("id")
	c.SetParamValues(testChat)
	if err := h.delete(c); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
