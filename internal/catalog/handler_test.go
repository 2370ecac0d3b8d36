package catalog

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeApp() *fiber.App {
	h := NewHandler(NewService(NewInMemoryRepository(seedItems())))
	app := fiber.New()
	h.RegisterPublicRoutes(app)
	h.RegisterAdminRoutes(app.Group("/api/v1/admin"))
	return app
}

func TestItemRoutes_Public(t *testing.T) {
	app := makeApp()

	res, err := app.Test(httptest.NewRequest("GET", "/api/v1/items?category=Oud", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	var items []Item
	require.NoError(t, json.NewDecoder(res.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)

	res, err = app.Test(httptest.NewRequest("GET", "/api/v1/items/b", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	res, err = app.Test(httptest.NewRequest("GET", "/api/v1/items/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, res.StatusCode)

	res, err = app.Test(httptest.NewRequest("GET", "/api/v1/brands", nil))
	require.NoError(t, err)
	b, _ := io.ReadAll(res.Body)
	assert.JSONEq(t, `["Ajmal","Rasasi"]`, string(b))
}

func TestItemRoutes_AdminCRUD(t *testing.T) {
	app := makeApp()

	req := httptest.NewRequest("POST", "/api/v1/admin/items", strings.NewReader(`{"name":"Sandal Oud","category":"Sandalwood","price":900,"stock":3}`))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, res.StatusCode)
	var created Item
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	assert.Equal(t, "900", created.Price.String())

	req = httptest.NewRequest("POST", "/api/v1/admin/items", strings.NewReader(`{"price":10}`))
	req.Header.Set("Content-Type", "application/json")
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
	b, _ := io.ReadAll(res.Body)
	assert.Contains(t, string(b), "name is required")

	req = httptest.NewRequest("PUT", "/api/v1/admin/items/"+created.ID, strings.NewReader(`{"name":"Sandal Oud","category":"Sandalwood","price":950,"stock":8}`))
	req.Header.Set("Content-Type", "application/json")
	res, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	res, err = app.Test(httptest.NewRequest("DELETE", "/api/v1/admin/items/"+created.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, res.StatusCode)

	res, err = app.Test(httptest.NewRequest("DELETE", "/api/v1/admin/items/"+created.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, res.StatusCode)
}
