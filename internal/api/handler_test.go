package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/khatalens/internal/domain"
	"github.com/dvloznov/khatalens/internal/kvstore"
	"github.com/dvloznov/khatalens/internal/logger"
	"github.com/dvloznov/khatalens/internal/store"
	"github.com/dvloznov/khatalens/internal/workflow"
)

type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, image []byte, mediaType string, shop domain.ShopType) []domain.LineItem {
	return []domain.LineItem{
		{ID: "i1", Date: "2024-01-01", Description: "Rice", Amount: 100},
	}
}

type stubMarketing struct{}

func (stubMarketing) GeneratePoster(ctx context.Context, topic string, shop domain.ShopType) (domain.Poster, error) {
	if strings.TrimSpace(topic) == "" {
		return domain.Poster{}, fmt.Errorf("topic is empty")
	}
	return domain.Poster{ID: "p1", Headline: "Big Sale!", ColorTheme: "#3b82f6"}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	log := logger.NewWithWriter(io.Discard)
	records := store.New(kvstore.NewMemStore(), log)
	sessions := NewSessionManager(func() *workflow.Controller {
		return workflow.New(stubExtractor{}, records, log,
			workflow.WithStageDwell(map[workflow.Stage]time.Duration{}))
	})

	h := NewHandler(sessions, stubMarketing{}, "test_secret", log)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func loginAs(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "",
		map[string]string{"username": username, "password": "secret"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}

	var body struct {
		Token   string             `json:"token"`
		Profile domain.UserProfile `json:"profile"`
	}
	decode(t, resp, &body)
	if body.Token == "" {
		t.Fatal("login returned no token")
	}
	return body.Token
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	token := loginAs(t, srv, "ramesh")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/session", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session status = %d", resp.StatusCode)
	}
	var snap workflow.Snapshot
	decode(t, resp, &snap)
	if snap.Step != workflow.StepIdle {
		t.Errorf("step after login = %s, want idle", snap.Step)
	}
	if snap.Profile == nil || snap.Profile.DisplayName != "Ramesh" {
		t.Errorf("profile = %+v", snap.Profile)
	}
}

func TestLogin_EmptyCredentialsRejected(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "",
		map[string]string{"username": "", "password": "x"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("login with empty username status = %d, want 400", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/records", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated request status = %d, want 401", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/records", "not.a.token", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", resp.StatusCode)
	}
}

// waitForStep polls the session endpoint until the workflow reaches step.
func waitForStep(t *testing.T, srv *httptest.Server, token string, step workflow.Step) workflow.Snapshot {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/session", token, nil)
		var snap workflow.Snapshot
		decode(t, resp, &snap)
		if snap.Step == step {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("workflow never reached step %s", step)
	return workflow.Snapshot{}
}

func TestScanFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	token := loginAs(t, srv, "ramesh")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/scan/", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start scan status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/scan/image", bytes.NewReader([]byte("fake-jpeg")))
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Authorization", "Bearer "+token)
	uploadResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	uploadResp.Body.Close()
	if uploadResp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload status = %d, want 202", uploadResp.StatusCode)
	}

	snap := waitForStep(t, srv, token, workflow.StepVerifying)
	if len(snap.Items) != 1 || snap.Items[0].Description != "Rice" {
		t.Fatalf("extracted items = %+v", snap.Items)
	}

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/scan/items", token, snap.Items)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm items status = %d", resp.StatusCode)
	}
	var breakdown domain.TaxBreakdown
	decode(t, resp, &breakdown)
	if breakdown.Total != 118 {
		t.Errorf("breakdown = %+v, want total 118", breakdown)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/scan/accept-tax", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept tax status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/scan/save", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d", resp.StatusCode)
	}
	var saved struct {
		Records []domain.LedgerRecord `json:"records"`
		Count   int                   `json:"count"`
	}
	decode(t, resp, &saved)
	if saved.Count != 1 || saved.Records[0].Tax.Total != 118 {
		t.Errorf("saved = %+v", saved)
	}

	// History endpoint agrees.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/records", token, nil)
	var listed struct {
		Count int `json:"count"`
	}
	decode(t, resp, &listed)
	if listed.Count != 1 {
		t.Errorf("records count = %d, want 1", listed.Count)
	}
}

func TestUploadImage_OversizedRejected(t *testing.T) {
	srv := newTestServer(t)
	token := loginAs(t, srv, "ramesh")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/scan/", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start scan status = %d", resp.StatusCode)
	}

	oversized := bytes.Repeat([]byte("x"), maxImageBytes+1)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/scan/image", bytes.NewReader(oversized))
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Authorization", "Bearer "+token)
	uploadResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	uploadResp.Body.Close()
	if uploadResp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized upload status = %d, want 413", uploadResp.StatusCode)
	}

	// The session is still waiting for a valid upload.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/session", token, nil)
	var snap workflow.Snapshot
	decode(t, resp, &snap)
	if snap.Step != workflow.StepAwaitingUpload {
		t.Errorf("step after rejected upload = %s, want awaiting_upload", snap.Step)
	}
}

func TestScanGuardConflicts(t *testing.T) {
	srv := newTestServer(t)
	token := loginAs(t, srv, "ramesh")

	// Confirming items without a scan in progress is a step violation.
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/scan/items", token, []domain.LineItem{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("confirm without scan status = %d, want 409", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/scan/save", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("save without preview status = %d, want 409", resp.StatusCode)
	}
}

func TestCancelScan(t *testing.T) {
	srv := newTestServer(t)
	token := loginAs(t, srv, "ramesh")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/scan/", token, nil)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/scan/cancel", token, nil)
	var snap workflow.Snapshot
	decode(t, resp, &snap)
	if snap.Step != workflow.StepIdle {
		t.Errorf("step after cancel = %s, want idle", snap.Step)
	}
}

func TestReportCSVEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := loginAs(t, srv, "ramesh")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/reports/csv", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("csv status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "Date,Transaction ID,Items,Subtotal,Tax,Total") {
		t.Errorf("csv body = %q", body)
	}
}

func TestGeneratePosterEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := loginAs(t, srv, "ramesh")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/marketing/poster", token,
		map[string]string{"topic": "20% off rice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("poster status = %d", resp.StatusCode)
	}
	var poster domain.Poster
	decode(t, resp, &poster)
	if poster.Headline == "" {
		t.Errorf("poster = %+v", poster)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/marketing/poster", token,
		map[string]string{"topic": ""})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty topic status = %d, want 400", resp.StatusCode)
	}
}

func TestSetShopType(t *testing.T) {
	srv := newTestServer(t)
	token := loginAs(t, srv, "ramesh")

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/settings/shop-type", token,
		map[string]string{"shop_type": "grocery"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set shop type status = %d", resp.StatusCode)
	}
	var profile domain.UserProfile
	decode(t, resp, &profile)
	if profile.ShopType != domain.ShopGrocery {
		t.Errorf("shop type = %s, want grocery", profile.ShopType)
	}

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/settings/shop-type", token,
		map[string]string{"shop_type": "boutique"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown shop type status = %d, want 400", resp.StatusCode)
	}
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t)
	token := loginAs(t, srv, "ramesh")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/logout", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	// The token still verifies, but the session is gone.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/session", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("session after logout status = %d, want 401", resp.StatusCode)
	}
}
