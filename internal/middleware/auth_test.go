package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quizroom/quizroom-api/internal/token"
	"go.uber.org/zap"
)

func newGate(t *testing.T) (*token.Codec, func(http.Handler) http.Handler) {
	t.Helper()

	codec, err := token.NewCodec("unit-test-signing-secret")
	if err != nil {
		t.Fatalf("NewCodec() returned error: %v", err)
	}
	return codec, Auth(codec, zap.NewNop())
}

func issueAccess(t *testing.T, codec *token.Codec, ttl time.Duration) string {
	t.Helper()

	signed, err := codec.Issue(token.Claims{
		UserID:  "user-1",
		Email:   "alice@example.com",
		TokenID: "jti-1",
	}, ttl, token.PurposeAccess)
	if err != nil {
		t.Fatalf("Issue() returned error: %v", err)
	}
	return signed
}

func gateResponse(t *testing.T, gate func(http.Handler) http.Handler, prep func(*http.Request)) (*httptest.ResponseRecorder, *token.Claims) {
	t.Helper()

	var attached *token.Claims
	handler := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attached = ClaimsFromContext(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/auth/selfData", nil)
	prep(req)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, attached
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return body.Error
}

func TestAuthGateNoCredential(t *testing.T) {
	t.Parallel()

	_, gate := newGate(t)
	rec, attached := gateResponse(t, gate, func(r *http.Request) {})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != CodeNoToken {
		t.Errorf("Expected error code %s, got %s", CodeNoToken, code)
	}
	if attached != nil {
		t.Error("No identity may be attached without a credential")
	}
}

func TestAuthGateValidCookie(t *testing.T) {
	t.Parallel()

	codec, gate := newGate(t)
	signed := issueAccess(t, codec, time.Minute)

	rec, attached := gateResponse(t, gate, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: signed})
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if attached == nil {
		t.Fatal("Expected claims in context")
	}
	if attached.UserID != "user-1" || attached.Email != "alice@example.com" {
		t.Errorf("Unexpected claims attached: %+v", attached)
	}
}

func TestAuthGateBearerHeader(t *testing.T) {
	t.Parallel()

	codec, gate := newGate(t)
	signed := issueAccess(t, codec, time.Minute)

	rec, attached := gateResponse(t, gate, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+signed)
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if attached == nil {
		t.Fatal("Expected claims in context")
	}
}

func TestAuthGateCookiePrecedence(t *testing.T) {
	t.Parallel()

	codec, gate := newGate(t)
	valid := issueAccess(t, codec, time.Minute)

	// Valid cookie wins even when the header carries garbage
	rec, _ := gateResponse(t, gate, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: valid})
		r.Header.Set("Authorization", "Bearer garbage")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected cookie to take precedence, got %d", rec.Code)
	}

	// And a garbage cookie is rejected regardless of a valid header
	rec, attached := gateResponse(t, gate, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "garbage"})
		r.Header.Set("Authorization", "Bearer "+valid)
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for tampered cookie, got %d", rec.Code)
	}
	if attached != nil {
		t.Error("No identity may be attached on rejection")
	}
}

func TestAuthGateExpiredToken(t *testing.T) {
	t.Parallel()

	codec, gate := newGate(t)
	signed := issueAccess(t, codec, -time.Second)

	rec, attached := gateResponse(t, gate, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: signed})
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != CodeTokenExpired {
		t.Errorf("Expected error code %s, got %s", CodeTokenExpired, code)
	}
	if attached != nil {
		t.Error("No identity may be attached for an expired token")
	}
}

func TestAuthGateInvalidToken(t *testing.T) {
	t.Parallel()

	_, gate := newGate(t)

	rec, attached := gateResponse(t, gate, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not.a.token")
	})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != CodeInvalidToken {
		t.Errorf("Expected error code %s, got %s", CodeInvalidToken, code)
	}
	if attached != nil {
		t.Error("No identity may be attached for an invalid token")
	}
}

func TestAuthGateRejectsRefreshToken(t *testing.T) {
	t.Parallel()

	codec, gate := newGate(t)

	refresh, err := codec.Issue(token.Claims{UserID: "user-1", TokenID: "record-1"}, time.Hour, token.PurposeRefresh)
	if err != nil {
		t.Fatalf("Issue() returned error: %v", err)
	}

	rec, attached := gateResponse(t, gate, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: refresh})
	})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for refresh token at the gate, got %d", rec.Code)
	}
	if attached != nil {
		t.Error("No identity may be attached for a purpose-mismatched token")
	}
}
