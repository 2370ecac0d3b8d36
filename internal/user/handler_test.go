package user

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-secret"

// makeAppWithUserHandler injects a jwt.Token into locals when the X-User-ID
// header is provided, standing in for the jwtware middleware.
func makeAppWithUserHandler(uHandler *Handler) *fiber.App {
	app := fiber.New()
	uHandler.RegisterPublicRoutes(app)
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			id, err := strconv.Atoi(v)
			if err == nil {
				claims := jwt.MapClaims{"user_id": float64(id)}
				tok := &jwt.Token{Claims: claims}
				c.Locals("user", tok)
			}
		}
		return c.Next()
	})
	uHandler.RegisterProtectedRoutes(app)
	return app
}

func TestProfileRoute_RegistrationAndAuth(t *testing.T) {
	seed := []User{{ID: 7, Email: "j@example.com", Password: "$2a$10$hash", FullName: "Jenny Test", Phone: "9876543210"}}
	repo := NewInMemoryRepository(seed)
	handler := NewHandler(NewService(repo), testSecret)
	app := makeAppWithUserHandler(handler)

	routes := map[string]bool{}
	for _, grp := range app.Stack() {
		for _, r := range grp {
			routes[r.Path] = true
		}
	}
	if !routes["/api/v1/profile"] {
		t.Fatalf("expected route '/api/v1/profile' to be registered")
	}

	req := httptest.NewRequest("GET", "/api/v1/profile", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("profile request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected unauthorized status, got %d", res.StatusCode)
	}

	req2 := httptest.NewRequest("GET", "/api/v1/profile", nil)
	req2.Header.Set("X-User-ID", "7")
	res2, err := app.Test(req2)
	if err != nil {
		t.Fatalf("authorized profile request failed: %v", err)
	}
	if res2.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 OK for authorized profile, got %d", res2.StatusCode)
	}

	b, _ := io.ReadAll(res2.Body)
	body := string(b)
	if !strings.Contains(body, "j@example.com") || !strings.Contains(body, "Jenny Test") {
		t.Fatalf("response body does not contain the account, got %s", body)
	}
	if strings.Contains(body, "password") {
		t.Fatalf("response body should not expose password field")
	}
}

func TestSignUpThenSignIn(t *testing.T) {
	repo := NewInMemoryRepository(nil)
	app := makeAppWithUserHandler(NewHandler(NewService(repo), testSecret))

	signUp := `{"email":"Asha@Example.com","password":"sandalwood","fullName":"Asha Rao","phone":"9876543210"}`
	req := httptest.NewRequest("POST", "/api/v1/sign-up", strings.NewReader(signUp))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("sign-up failed: %v", err)
	}
	if res.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201 on sign-up, got %d", res.StatusCode)
	}

	req = httptest.NewRequest("POST", "/api/v1/sign-up", strings.NewReader(signUp))
	req.Header.Set("Content-Type", "application/json")
	res, err = app.Test(req)
	if err != nil {
		t.Fatalf("second sign-up failed: %v", err)
	}
	if res.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", res.StatusCode)
	}

	req = httptest.NewRequest("POST", "/api/v1/sign-in", strings.NewReader(`{"email":"asha@example.com","password":"sandalwood"}`))
	req.Header.Set("Content-Type", "application/json")
	res, err = app.Test(req)
	if err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 on sign-in, got %d", res.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode sign-in response: %v", err)
	}
	if out.User.Password != "" {
		t.Fatalf("sign-in response leaked the password hash")
	}
	tok, err := jwt.Parse(out.Token, func(*jwt.Token) (interface{}, error) { return []byte(testSecret), nil })
	if err != nil || !tok.Valid {
		t.Fatalf("token did not verify: %v", err)
	}
	claims := tok.Claims.(jwt.MapClaims)
	if claims["email"] != "asha@example.com" || claims["user_id"] != float64(out.User.ID) {
		t.Fatalf("unexpected claims: %v", claims)
	}

	req = httptest.NewRequest("POST", "/api/v1/sign-in", strings.NewReader(`{"email":"asha@example.com","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	res, err = app.Test(req)
	if err != nil {
		t.Fatalf("bad sign-in failed: %v", err)
	}
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", res.StatusCode)
	}
}

func TestSignUpValidation(t *testing.T) {
	app := makeAppWithUserHandler(NewHandler(NewService(NewInMemoryRepository(nil)), testSecret))

	req := httptest.NewRequest("POST", "/api/v1/sign-up", strings.NewReader(`{"email":"not-an-email","password":"short","phone":"12"}`))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("sign-up failed: %v", err)
	}
	if res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}
	var out struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, field := range []string{"email", "password", "fullName", "phone"} {
		if _, ok := out.Errors[field]; !ok {
			t.Fatalf("expected an error for %s, got %v", field, out.Errors)
		}
	}
}

func TestProfileUpdate(t *testing.T) {
	seed := []User{{ID: 15, Email: "u15@example.com", Password: "$2a$10$keep", FullName: "Old Name", Phone: "9000000000"}}
	repo := NewInMemoryRepository(seed)
	app := makeAppWithUserHandler(NewHandler(NewService(repo), testSecret))

	req := httptest.NewRequest("PATCH", "/api/v1/profile", strings.NewReader(`{"fullName":"New Name"}`))
	req.Header.Set("X-User-ID", "15")
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("update request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 OK on update, got %d", res.StatusCode)
	}
	u, _ := repo.GetByID(15)
	if u.FullName != "New Name" || u.Phone != "9000000000" {
		t.Fatalf("partial update not applied: %+v", u)
	}
	if u.Password != "$2a$10$keep" {
		t.Fatalf("profile update must not touch the password hash")
	}

	for _, payload := range []string{`{"fullName":"  "}`, `{"phone":"12345"}`} {
		req = httptest.NewRequest("PATCH", "/api/v1/profile", strings.NewReader(payload))
		req.Header.Set("X-User-ID", "15")
		req.Header.Set("Content-Type", "application/json")
		res, err = app.Test(req)
		if err != nil {
			t.Fatalf("update request failed: %v", err)
		}
		if res.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", payload, res.StatusCode)
		}
	}

	req = httptest.NewRequest("PATCH", "/api/v1/profile", strings.NewReader(`{"phone":"9111111111"}`))
	req.Header.Set("X-User-ID", "99")
	req.Header.Set("Content-Type", "application/json")
	res, err = app.Test(req)
	if err != nil {
		t.Fatalf("update request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", res.StatusCode)
	}
}
