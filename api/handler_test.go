package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/shipfolio/shipfolio/logger"
	"github.com/shipfolio/shipfolio/mailer"
	"github.com/shipfolio/shipfolio/persistence"
	"github.com/shipfolio/shipfolio/ratelimit"
	"github.com/shipfolio/shipfolio/storage"
	"github.com/shipfolio/shipfolio/token"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

type testEnv struct {
	e         *echo.Echo
	repo      *persistence.Repository
	downloads *token.DownloadService
	profiles  *token.ProfileService
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_shipfolio.db")
	repo, err := persistence.Open("sqlite", dbPath, nil)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	downloads := token.NewDownloadService("test-secret")
	profiles := token.NewProfileService()

	h := NewHandler(
		repo,
		downloads,
		profiles,
		storage.NewLocalStore("http://localhost:8080/files"),
		mailer.NewLogMailer(zap.NewNop()),
		node,
		"http://localhost:8080",
	)

	e := echo.New()
	e.Use(SecurityHeaders(false))
	e.Use(RateLimit(ratelimit.NewLimiter()))
	h.RegisterRoutes(e.Group("/api"))

	return &testEnv{e: e, repo: repo, downloads: downloads, profiles: profiles}
}

func postJSON(e *echo.Echo, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSubscribe(t *testing.T) {
	env := setup(t)

	rec := postJSON(env.e, "/api/newsletter/subscribe", map[string]string{
		"email":    "Test@Example.com",
		"magnetId": "saas-checklist",
		"source":   "homepage",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	sub, err := env.repo.GetSubscriberByEmail(context.Background(), "test@example.com")
	if err != nil {
		t.Fatalf("subscriber not persisted: %v", err)
	}
	if sub.MagnetID != "saas-checklist" || sub.Source != "homepage" {
		t.Errorf("unexpected subscriber: %+v", sub)
	}
}

func TestSubscribeRejectsBadInput(t *testing.T) {
	env := setup(t)

	for name, body := range map[string]map[string]string{
		"invalid email":  {"email": "not-an-email"},
		"empty email":    {"email": ""},
		"unknown magnet": {"email": "a@b.com", "magnetId": "nope"},
	} {
		rec := postJSON(env.e, "/api/newsletter/subscribe", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestDownloadFlow(t *testing.T) {
	env := setup(t)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)
		return rec
	}

	// Missing token: distinct 401 from the invalid-token case.
	if rec := get("/api/downloads/saas-checklist"); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: expected 401, got %d", rec.Code)
	}

	if rec := get("/api/downloads/saas-checklist?token=garbage.garbage"); rec.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: expected 401, got %d", rec.Code)
	}

	// Valid signature, already expired.
	expired := env.downloads.Issue("a@b.com", "saas-checklist", -time.Hour)
	if rec := get("/api/downloads/saas-checklist?token=" + expired); rec.Code != http.StatusUnauthorized {
		t.Errorf("expired token: expected 401, got %d", rec.Code)
	}

	// Token bound to a different magnet.
	other := env.downloads.Issue("a@b.com", "go-deploy-guide", token.DefaultDownloadTTL)
	if rec := get("/api/downloads/saas-checklist?token=" + other); rec.Code != http.StatusForbidden {
		t.Errorf("mismatched magnet: expected 403, got %d", rec.Code)
	}

	// Unknown magnet is 404 regardless of the token.
	valid := env.downloads.Issue("a@b.com", "saas-checklist", token.DefaultDownloadTTL)
	if rec := get("/api/downloads/not-a-magnet?token=" + valid); rec.Code != http.StatusNotFound {
		t.Errorf("unknown magnet: expected 404, got %d", rec.Code)
	}

	rec := get("/api/downloads/saas-checklist?token=" + valid)
	if rec.Code != http.StatusFound {
		t.Fatalf("valid token: expected 302, got %d: %s", rec.Code, rec.Body.String())
	}
	want := "http://localhost:8080/files/magnets/saas-launch-checklist.pdf"
	if loc := rec.Header().Get("Location"); loc != want {
		t.Errorf("Location = %q, expected %q", loc, want)
	}
}

func TestProfileAnswerFlow(t *testing.T) {
	env := setup(t)

	rec := postJSON(env.e, "/api/profile", map[string]string{"token": "", "question": "role", "answer": "founder"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing token: expected 400, got %d", rec.Code)
	}

	rec = postJSON(env.e, "/api/profile", map[string]string{"token": "!!!", "question": "role", "answer": "founder"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", rec.Code)
	}

	// An expired link: the wire format is public, so build one directly.
	stale, _ := json.Marshal(map[string]any{
		"email":     "a@b.com",
		"timestamp": time.Now().Add(-31 * 24 * time.Hour).UnixMilli(),
	})
	rec = postJSON(env.e, "/api/profile", map[string]string{
		"token":    base64.RawURLEncoding.EncodeToString(stale),
		"question": "role",
		"answer":   "founder",
	})
	if rec.Code != http.StatusGone {
		t.Errorf("expired token: expected 410, got %d", rec.Code)
	}

	rec = postJSON(env.e, "/api/profile", map[string]string{
		"token":    env.profiles.Encode("a@b.com"),
		"question": "role",
		"answer":   "founder",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	answers, err := env.repo.ProfileAnswers(context.Background(), "a@b.com")
	if err != nil || len(answers) != 1 {
		t.Fatalf("answer not persisted: %v (%d rows)", err, len(answers))
	}
	if answers[0].Answer != "founder" {
		t.Errorf("unexpected answer: %+v", answers[0])
	}
}

func TestTrack(t *testing.T) {
	env := setup(t)

	rec := postJSON(env.e, "/api/analytics/track", map[string]any{
		"event":      "page_view",
		"path":       "/guides/go-deploy",
		"properties": map[string]string{"ref": "newsletter"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var count int64
	env.repo.DB().Model(&persistence.AnalyticsEvent{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 event row, got %d", count)
	}

	rec = postJSON(env.e, "/api/analytics/track", map[string]any{"path": "/"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing event: expected 400, got %d", rec.Code)
	}
}

func TestSubscribeRateLimited(t *testing.T) {
	env := setup(t)

	var rec *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		raw, _ := json.Marshal(map[string]string{"email": "a@b.com"})
		req := httptest.NewRequest(http.MethodPost, "/api/newsletter/subscribe", bytes.NewReader(raw))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		rec = httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)
	}

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("6th subscribe: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing on 429")
	}
}
