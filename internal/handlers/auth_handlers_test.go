package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/teamvault/backend/internal/models"
)

func TestHealthEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	resp := performRequest(t, env.app, http.MethodGet, "/health", nil, nil)
	body := decodeJSONMap(t, resp)

	assertStatus(t, resp, http.StatusOK)
	if body["status"] != "ok" {
		t.Fatalf("expected health status %q, got %v", "ok", body["status"])
	}
}

func TestRegister(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("creates user and returns token", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":     "alice@example.com",
			"password":  "password123",
			"firstName": "Alice",
			"lastName":  "Archer",
		}, nil)
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusCreated)
		data := dataMap(t, body)
		if data["token"] == nil || data["token"] == "" {
			t.Fatalf("expected token in response, got %+v", data)
		}

		var user models.User
		if err := env.db.First(&user, "email = ?", "alice@example.com").Error; err != nil {
			t.Fatalf("expected user row, got error: %v", err)
		}
		if user.Role != models.UserRoleUser {
			t.Fatalf("expected default role user, got %q", user.Role)
		}
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodPost, "/api/auth/register", strings.NewReader("{"), map[string]string{
			"Content-Type": "application/json",
		})
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "invalid request body")
	})

	t.Run("rejects short password", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":     "bob@example.com",
			"password":  "short",
			"firstName": "Bob",
			"lastName":  "Builder",
		}, nil)

		assertStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
			"email":     "alice@example.com",
			"password":  "password123",
			"firstName": "Alice",
			"lastName":  "Again",
		}, nil)
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, body, "email already registered")
	})
}

func TestLogin(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "carol@example.com", "password123", models.UserRoleUser)

	t.Run("succeeds with valid credentials", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "carol@example.com",
			"password": "password123",
		}, nil)
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		if data["token"] == nil || data["token"] == "" {
			t.Fatalf("expected token in response, got %+v", data)
		}
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "carol@example.com",
			"password": "wrong-password",
		}, nil)
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "invalid credentials")
	})

	t.Run("rejects unknown user", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
			"email":    "nobody@example.com",
			"password": "password123",
		}, nil)

		assertStatus(t, resp, http.StatusUnauthorized)
	})

	t.Run("rejects empty body", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{}, nil)
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "email and password are required")
	})
}

func TestMe(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "dave@example.com", "password123", models.UserRoleUser)

	t.Run("returns the authenticated user", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(token))
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, body)
		if data["email"] != user.Email {
			t.Fatalf("expected email %q, got %v", user.Email, data["email"])
		}
	})

	t.Run("rejects missing header", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, nil)
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "missing authorization header")
	})

	t.Run("rejects malformed header", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, map[string]string{
			"Authorization": "Token abc",
		})
		body := decodeJSONMap(t, resp)

		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "invalid authorization format")
	})
}
