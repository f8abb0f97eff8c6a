package fixserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fixengine/internal/fix"
	"fixengine/internal/fixserver"
)

func newTestServer(t *testing.T) (*fixserver.Server, *fix.SessionRegistry, *fix.Session) {
	t.Helper()

	reg := fix.NewSessionRegistry(nil)
	cfg := fix.SessionConfig{
		ID:          fix.NewSessionID(fix.BeginStringFIX44, "BUYER", "SELLER"),
		Application: fix.NopApplication{},
		Settings:    fix.DefaultSettings(),
	}
	sess, err := fix.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	if err := reg.Add(sess); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	return fixserver.New(reg, fix.SystemClock{}, nil), reg, sess
}

func TestHandleListSessions(t *testing.T) {
	srv, _, sess := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var views []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(views) != 1 || views[0]["session_id"] != sess.ID().String() {
		t.Fatalf("list response = %v, want one entry for %s", views, sess.ID())
	}
}

func TestHandleGetSessionNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/sessions/FIX.4.4:X->Y", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleLogonLogout(t *testing.T) {
	srv, _, sess := newTestServer(t)
	path := "/sessions/" + sess.ID().String()

	req := httptest.NewRequest(http.MethodPost, path+"/logon", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("logon status = %d, want 200", rec.Code)
	}
	if !sess.IsEnabled() {
		t.Fatal("expected session to be enabled after logon request")
	}

	body := bytes.NewBufferString(`{"reason":"operator requested"}`)
	req = httptest.NewRequest(http.MethodPost, path+"/logout", body)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", rec.Code)
	}
	if sess.IsEnabled() {
		t.Fatal("expected session to be disabled after logout request")
	}
}

func TestHandleSetSeqNums(t *testing.T) {
	srv, _, sess := newTestServer(t)
	path := "/sessions/" + sess.ID().String() + "/seqnums"

	body := bytes.NewBufferString(`{"next_sender_seq_num":50,"next_target_seq_num":75}`)
	req := httptest.NewRequest(http.MethodPut, path, body)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	sender, _ := sess.NextSenderMsgSeqNum()
	target, _ := sess.NextTargetMsgSeqNum()
	if sender != 50 || target != 75 {
		t.Fatalf("sender=%d target=%d, want 50, 75", sender, target)
	}
}

func TestHandleReset(t *testing.T) {
	srv, _, sess := newTestServer(t)
	path := "/sessions/" + sess.ID().String() + "/reset"

	_ = sess.SetNextSenderMsgSeqNum(10)

	req := httptest.NewRequest(http.MethodPost, path, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	sender, _ := sess.NextSenderMsgSeqNum()
	if sender != 1 {
		t.Fatalf("NextSenderMsgSeqNum() after reset = %d, want 1", sender)
	}
}
