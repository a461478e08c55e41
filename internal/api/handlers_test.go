package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/admaesmo/AidDiag/internal/audit"
	"github.com/admaesmo/AidDiag/internal/auth"
	"github.com/admaesmo/AidDiag/internal/core"
	"github.com/admaesmo/AidDiag/internal/keys"
	"github.com/admaesmo/AidDiag/internal/service"
	"github.com/admaesmo/AidDiag/internal/store"
	"github.com/admaesmo/AidDiag/internal/token"
)

const (
	testIssuer   = "http://localhost:8000"
	testAudience = "aiddiag-api"
)

type apiFixture struct {
	ts    *httptest.Server
	store *store.Memory
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	material, err := keys.LoadOrGenerate(filepath.Join(t.TempDir(), "private.pem"), "test-kid")
	if err != nil {
		t.Fatalf("generating key material: %v", err)
	}

	mem := store.NewMemory()
	codec := token.NewCodec(material)
	validator := auth.NewValidator(testIssuer, testAudience)
	auditor := audit.NewMemoryAuditor()
	authenticator := auth.NewAuthenticator(mem, codec, auditor, testIssuer, testAudience, 15*time.Minute, 7*24*time.Hour)
	refreshFlow := auth.NewRefreshFlow(mem, codec, validator, authenticator, auditor)
	intake := service.NewIntakeService(mem, mem, mem)

	srv := NewServer(
		material.KeySet(), codec, validator,
		authenticator, refreshFlow, nil,
		mem, intake, auditor,
		"demo",
	)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	return &apiFixture{ts: ts, store: mem}
}

func (f *apiFixture) request(t *testing.T, method, path, bearer string, payload any) (*http.Response, []byte) {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshaling payload: %v", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, f.ts.URL+path, body)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return resp, buf.Bytes()
}

func (f *apiFixture) signUp(t *testing.T, email, password, role string) {
	t.Helper()
	resp, body := f.request(t, "POST", SignUpRoute, "", SignUpPayload{
		Email:    email,
		Password: password,
		Role:     role,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup of %s = %d, body: %s", email, resp.StatusCode, body)
	}
}

func (f *apiFixture) signIn(t *testing.T, email, password string) AuthTokenResponse {
	t.Helper()
	resp, body := f.request(t, "POST", SignInRoute, "", SignInPayload{
		Email:    email,
		Password: password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signin of %s = %d, body: %s", email, resp.StatusCode, body)
	}
	var tokens AuthTokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		t.Fatalf("decoding signin response: %v", err)
	}
	return tokens
}

func TestPublicEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("health", func(t *testing.T) {
		resp, body := f.request(t, "GET", HealthCheckRoute, "", nil)
		if resp.StatusCode != http.StatusOK || string(body) != "OK" {
			t.Errorf("health = %d %q", resp.StatusCode, body)
		}
	})

	t.Run("jwks", func(t *testing.T) {
		resp, body := f.request(t, "GET", JWKSRoute, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("jwks = %d", resp.StatusCode)
		}
		var set keys.Set
		if err := json.Unmarshal(body, &set); err != nil {
			t.Fatalf("decoding jwks: %v", err)
		}
		if len(set.Keys) != 1 || set.Keys[0].Kid != "test-kid" || set.Keys[0].Alg != "RS256" {
			t.Errorf("unexpected jwks: %+v", set)
		}
	})
}

func TestSignUpAndSignIn(t *testing.T) {
	f := newAPIFixture(t)
	f.signUp(t, "pat@demo.local", "Patient123!", "patient")

	t.Run("duplicate signup conflicts", func(t *testing.T) {
		resp, _ := f.request(t, "POST", SignUpRoute, "", SignUpPayload{
			Email:    "pat@demo.local",
			Password: "Patient123!",
		})
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("duplicate signup = %d, want 409", resp.StatusCode)
		}
	})

	t.Run("signin returns token pair", func(t *testing.T) {
		tokens := f.signIn(t, "pat@demo.local", "Patient123!")
		if tokens.Token == "" || tokens.RefreshToken == "" {
			t.Error("missing token or refresh_token")
		}
		if tokens.TokenType != "Bearer" {
			t.Errorf("token_type = %q, want Bearer", tokens.TokenType)
		}
		if !tokens.ExpiresAt.After(time.Now()) {
			t.Error("expires_at is not in the future")
		}
	})

	t.Run("enumeration resistance", func(t *testing.T) {
		wrongPw, wrongPwBody := f.request(t, "POST", SignInRoute, "", SignInPayload{
			Email: "pat@demo.local", Password: "nope",
		})
		unknown, unknownBody := f.request(t, "POST", SignInRoute, "", SignInPayload{
			Email: "nobody@demo.local", Password: "nope",
		})
		if wrongPw.StatusCode != http.StatusUnauthorized || unknown.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d / %d, want 401 for both", wrongPw.StatusCode, unknown.StatusCode)
		}

		var a, b map[string]any
		if err := json.Unmarshal(wrongPwBody, &a); err != nil {
			t.Fatal(err)
		}
		if err := json.Unmarshal(unknownBody, &b); err != nil {
			t.Fatal(err)
		}
		if a["error"] != b["error"] {
			t.Errorf("error bodies differ: %q vs %q", a["error"], b["error"])
		}
	})
}

func TestRefreshEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.signUp(t, "pat@demo.local", "Patient123!", "patient")
	tokens := f.signIn(t, "pat@demo.local", "Patient123!")

	t.Run("valid refresh", func(t *testing.T) {
		resp, body := f.request(t, "POST", RefreshRoute, "", RefreshPayload{RefreshToken: tokens.RefreshToken})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("refresh = %d, body: %s", resp.StatusCode, body)
		}
		var refreshed AuthTokenResponse
		if err := json.Unmarshal(body, &refreshed); err != nil {
			t.Fatal(err)
		}
		if refreshed.ExpiresAt.Before(tokens.ExpiresAt) {
			t.Errorf("refreshed expiry %v precedes original %v", refreshed.ExpiresAt, tokens.ExpiresAt)
		}
		// the new access token must actually work
		me, _ := f.request(t, "GET", MeRoute, refreshed.Token, nil)
		if me.StatusCode != http.StatusOK {
			t.Errorf("refreshed token rejected: %d", me.StatusCode)
		}
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		resp, _ := f.request(t, "POST", RefreshRoute, "", RefreshPayload{RefreshToken: tokens.Token})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("refresh with access token = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("garbage refresh token is 401, never 500", func(t *testing.T) {
		resp, _ := f.request(t, "POST", RefreshRoute, "", RefreshPayload{RefreshToken: "garbage"})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("refresh with garbage = %d, want 401", resp.StatusCode)
		}
	})
}

func TestAuthorizationBoundaries(t *testing.T) {
	f := newAPIFixture(t)
	f.signUp(t, "pat@demo.local", "Patient123!", "patient")
	f.signUp(t, "admin@demo.local", "Admin123!", "admin")
	patient := f.signIn(t, "pat@demo.local", "Patient123!")
	admin := f.signIn(t, "admin@demo.local", "Admin123!")

	t.Run("missing token", func(t *testing.T) {
		resp, _ := f.request(t, "GET", MeRoute, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("patient on admin route", func(t *testing.T) {
		resp, _ := f.request(t, "GET", AuditEventsRoute, patient.Token, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("patient on cases route", func(t *testing.T) {
		resp, _ := f.request(t, "GET", CasesRoute, patient.Token, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("admin on admin route", func(t *testing.T) {
		resp, _ := f.request(t, "GET", AuditEventsRoute, admin.Token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("tampered token", func(t *testing.T) {
		resp, _ := f.request(t, "GET", MeRoute, patient.Token+"x", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("bearer scheme without separator", func(t *testing.T) {
		req, err := http.NewRequest("GET", f.ts.URL+MeRoute, nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer"+patient.Token)
		resp, err := f.ts.Client().Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})
}

func TestMeEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.signUp(t, "pro@demo.local", "Pro123!", "professional")
	tokens := f.signIn(t, "pro@demo.local", "Pro123!")

	resp, body := f.request(t, "GET", MeRoute, tokens.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me = %d, body: %s", resp.StatusCode, body)
	}

	var me MeResponse
	if err := json.Unmarshal(body, &me); err != nil {
		t.Fatal(err)
	}
	if me.User.Email != "pro@demo.local" || me.User.Role != core.RoleProfessional {
		t.Errorf("unexpected profile: %+v", me.User)
	}
	if len(me.Scopes) == 0 {
		t.Error("expected scopes in response")
	}
	if bytes.Contains(body, []byte("password")) {
		t.Error("response leaks password material")
	}
}

func TestSymptomAndPredictionFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.signUp(t, "pat@demo.local", "Patient123!", "patient")
	tokens := f.signIn(t, "pat@demo.local", "Patient123!")

	me, body := f.request(t, "GET", MeRoute, tokens.Token, nil)
	if me.StatusCode != http.StatusOK {
		t.Fatal("could not resolve own profile")
	}
	var profile MeResponse
	if err := json.Unmarshal(body, &profile); err != nil {
		t.Fatal(err)
	}
	patientID := profile.User.ID

	var entry core.SymptomEntry
	t.Run("create symptoms", func(t *testing.T) {
		resp, body := f.request(t, "POST", SymptomsRoute, tokens.Token, CreateSymptomsPayload{
			PatientID: patientID,
			Symptoms:  map[string]any{"fever": true, "days": 3},
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create symptoms = %d, body: %s", resp.StatusCode, body)
		}
		if err := json.Unmarshal(body, &entry); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("tenant mismatch in body", func(t *testing.T) {
		foreign := uuid.New()
		resp, _ := f.request(t, "POST", SymptomsRoute, tokens.Token, CreateSymptomsPayload{
			PatientID: patientID,
			TenantID:  &foreign,
			Symptoms:  map[string]any{"fever": true},
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("list symptoms", func(t *testing.T) {
		resp, body := f.request(t, "GET", fmt.Sprintf("%s?patient_id=%s&limit=10", SymptomsRoute, patientID), tokens.Token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("list symptoms = %d, body: %s", resp.StatusCode, body)
		}
		var page service.SymptomPage
		if err := json.Unmarshal(body, &page); err != nil {
			t.Fatal(err)
		}
		if page.Total != 1 {
			t.Errorf("Total = %d, want 1", page.Total)
		}
	})

	t.Run("predict", func(t *testing.T) {
		resp, body := f.request(t, "POST", PredictRoute, tokens.Token, PredictPayload{
			PatientID:      patientID,
			SymptomEntryID: entry.ID,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("predict = %d, body: %s", resp.StatusCode, body)
		}
		var prediction core.Prediction
		if err := json.Unmarshal(body, &prediction); err != nil {
			t.Fatal(err)
		}
		if prediction.Label != "POS" && prediction.Label != "NEG" {
			t.Errorf("label = %q", prediction.Label)
		}
	})

	t.Run("predict on unknown entry is 404", func(t *testing.T) {
		resp, _ := f.request(t, "POST", PredictRoute, tokens.Token, PredictPayload{
			PatientID:      patientID,
			SymptomEntryID: uuid.New(),
		})
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("list predictions", func(t *testing.T) {
		resp, body := f.request(t, "GET", fmt.Sprintf("%s?patient_id=%s", PredictionsRoute, patientID), tokens.Token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("list predictions = %d, body: %s", resp.StatusCode, body)
		}
		var page service.PredictionPage
		if err := json.Unmarshal(body, &page); err != nil {
			t.Fatal(err)
		}
		if page.Total != 1 {
			t.Errorf("Total = %d, want 1", page.Total)
		}
	})
}

func TestCaseManagement(t *testing.T) {
	f := newAPIFixture(t)
	f.signUp(t, "pro@demo.local", "Pro123!", "professional")
	pro := f.signIn(t, "pro@demo.local", "Pro123!")

	// seed a case directly in the store
	tenant, err := f.store.GetOrCreateTenant(context.Background(), "demo")
	if err != nil {
		t.Fatal(err)
	}
	c := &core.Case{
		TenantID:  tenant.ID,
		PatientID: uuid.New(),
		Status:    "open",
	}
	if err := f.store.CreateCase(context.Background(), c); err != nil {
		t.Fatal(err)
	}

	t.Run("list open cases", func(t *testing.T) {
		resp, body := f.request(t, "GET", CasesRoute, pro.Token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("list cases = %d, body: %s", resp.StatusCode, body)
		}
		var cases []core.Case
		if err := json.Unmarshal(body, &cases); err != nil {
			t.Fatal(err)
		}
		if len(cases) != 1 || cases[0].ID != c.ID {
			t.Errorf("unexpected cases: %+v", cases)
		}
	})

	t.Run("close case", func(t *testing.T) {
		resp, body := f.request(t, "PATCH", "/api/v1/cases/"+c.ID.String(), pro.Token, PatchCasePayload{Status: "closed"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("patch case = %d, body: %s", resp.StatusCode, body)
		}
		var updated core.Case
		if err := json.Unmarshal(body, &updated); err != nil {
			t.Fatal(err)
		}
		if updated.Status != "closed" {
			t.Errorf("status = %q, want closed", updated.Status)
		}
	})

	t.Run("patch unknown case is 404", func(t *testing.T) {
		resp, _ := f.request(t, "PATCH", "/api/v1/cases/"+uuid.NewString(), pro.Token, PatchCasePayload{Status: "closed"})
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestAuditEventEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.signUp(t, "pat@demo.local", "Patient123!", "patient")
	f.signUp(t, "admin@demo.local", "Admin123!", "admin")
	patient := f.signIn(t, "pat@demo.local", "Patient123!")
	admin := f.signIn(t, "admin@demo.local", "Admin123!")

	t.Run("any role can record", func(t *testing.T) {
		resp, body := f.request(t, "POST", AuditEventsRoute, patient.Token, CreateAuditEventPayload{
			Action: "viewed",
			Entity: "symptom_entry",
			Meta:   map[string]any{"source": "mobile"},
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("record audit event = %d, body: %s", resp.StatusCode, body)
		}
	})

	t.Run("admin can list", func(t *testing.T) {
		resp, body := f.request(t, "GET", AuditEventsRoute, admin.Token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("list audit events = %d, body: %s", resp.StatusCode, body)
		}
		var events []core.AuditEvent
		if err := json.Unmarshal(body, &events); err != nil {
			t.Fatal(err)
		}
		if len(events) != 1 || events[0].Action != "viewed" {
			t.Errorf("unexpected events: %+v", events)
		}
	})
}

func TestErrorResponsesCarryCorrelationID(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.request(t, "GET", MeRoute, "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if resp.Header.Get("X-Correlation-ID") == "" {
		t.Error("missing X-Correlation-ID header")
	}
	var errResp map[string]any
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatal(err)
	}
	if errResp["correlation_id"] == "" {
		t.Error("missing correlation_id in error body")
	}
}
