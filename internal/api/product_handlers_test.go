package api_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrimarket-backend/test/helpers"
)

// smallest byte sequence http.DetectContentType reports as image/png
var pngHeader = []byte("\x89PNG\x0D\x0A\x1A\x0Apretend-image-data")

func multipartRequest(t *testing.T, fields map[string]string, fileField, fileName string, content []byte, token string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if fileField != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+fileField+`"; filename="`+fileName+`"`)
		h.Set("Content-Type", "image/png")
		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/products", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestCreateProduct(t *testing.T) {
	ts := helpers.NewTestSuite(t)
	farmer := ts.Users["farmer"]

	t.Run("JSONBodyIgnoresFarmerField", func(t *testing.T) {
		w := helpers.MakeRequest(ts.Router, "POST", "/api/products", map[string]interface{}{
			"name":     "Avocado",
			"quantity": 12,
			"price":    15.5,
			"farmer":   ts.Users["farmer2"].ID,
		}, ts.GetAuthHeaders("farmer"))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		product := helpers.DecodeObject(t, w)
		assert.Equal(t, "Avocado", product["name"])
		assert.Equal(t, 12.0, product["quantity"])
		assert.Equal(t, 15.5, product["price"])
		assert.Equal(t, "", product["imageUrl"])

		owner, ok := product["farmer"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, farmer.ID, owner["id"])
		assert.Equal(t, farmer.Name, owner["name"])
		assert.Equal(t, "Green Acres", owner["farmName"])
		assert.Nil(t, product["category"])
	})

	t.Run("MultipartWithImage", func(t *testing.T) {
		w := helpers.MakeRequest(ts.Router, "POST", "/api/categories", map[string]interface{}{"name": "Fruit"}, nil)
		require.Equal(t, http.StatusCreated, w.Code)
		categoryID := helpers.DecodeObject(t, w)["id"].(string)

		req := multipartRequest(t, map[string]string{
			"name":     "Mango",
			"quantity": "20",
			"price":    "30",
			"category": categoryID,
		}, "imageUrl", "mango.png", pngHeader, farmer.Token)

		w = httptest.NewRecorder()
		ts.Router.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		product := helpers.DecodeObject(t, w)
		assert.Equal(t, 20.0, product["quantity"])
		assert.Equal(t, 30.0, product["price"])

		category, ok := product["category"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "Fruit", category["name"])

		imageURL, _ := product["imageUrl"].(string)
		require.True(t, strings.HasPrefix(imageURL, "/uploads/"), imageURL)
		assert.True(t, strings.HasSuffix(imageURL, ".png"), imageURL)

		_, err := os.Stat(filepath.Join(ts.Config.UploadPath, strings.TrimPrefix(imageURL, "/uploads/")))
		require.NoError(t, err)

		served := helpers.MakeRequest(ts.Router, "GET", imageURL, nil, nil)
		assert.Equal(t, http.StatusOK, served.Code)
		assert.Equal(t, pngHeader, served.Body.Bytes())
	})

	t.Run("RejectsNonImageUpload", func(t *testing.T) {
		req := multipartRequest(t, map[string]string{
			"name": "Mango", "quantity": "1", "price": "1",
		}, "image", "mango.png", []byte("#!/bin/sh\necho not an image\n"), farmer.Token)

		w := httptest.NewRecorder()
		ts.Router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		entries, _ := os.ReadDir(ts.Config.UploadPath)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".sh")
		}
	})

	t.Run("InvalidFieldsRemoveSavedImage", func(t *testing.T) {
		before, _ := os.ReadDir(ts.Config.UploadPath)

		req := multipartRequest(t, map[string]string{
			"name": "Mango", "quantity": "1", "price": "0",
		}, "imageUrl", "mango.png", pngHeader, farmer.Token)

		w := httptest.NewRecorder()
		ts.Router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		after, _ := os.ReadDir(ts.Config.UploadPath)
		assert.Len(t, after, len(before))
	})

	t.Run("ClientForbidden", func(t *testing.T) {
		w := helpers.MakeRequest(ts.Router, "POST", "/api/products", map[string]interface{}{
			"name": "Avocado", "quantity": 1, "price": 1,
		}, ts.GetAuthHeaders("client"))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		w := helpers.MakeRequest(ts.Router, "POST", "/api/products", map[string]interface{}{
			"name": "Avocado", "quantity": 1, "price": 1,
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("UnknownCategory", func(t *testing.T) {
		w := helpers.MakeRequest(ts.Router, "POST", "/api/products", map[string]interface{}{
			"name": "Avocado", "quantity": 1, "price": 1, "category": "nope",
		}, ts.GetAuthHeaders("farmer"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Category not found", helpers.DecodeObject(t, w)["message"])
	})
}

func TestListAndGetProducts(t *testing.T) {
	ts := helpers.NewTestSuite(t)

	w := helpers.MakeRequest(ts.Router, "GET", "/api/products", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	productID := helpers.CreateTestProduct(t, ts.DB, ts.Users["farmer"].ID, 4, "2.75")

	w = helpers.MakeRequest(ts.Router, "GET", "/api/products", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	products := helpers.DecodeArray(t, w)
	require.Len(t, products, 1)
	assert.Equal(t, productID, products[0]["id"])
	assert.Equal(t, 2.75, products[0]["price"])

	w = helpers.MakeRequest(ts.Router, "GET", "/api/products/"+productID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Tomatoes", helpers.DecodeObject(t, w)["name"])

	w = helpers.MakeRequest(ts.Router, "GET", "/api/products/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Product not found", helpers.DecodeObject(t, w)["message"])
}

func TestDeleteProduct(t *testing.T) {
	ts := helpers.NewTestSuite(t)
	farmerID := ts.Users["farmer"].ID

	stocked := helpers.CreateTestProduct(t, ts.DB, farmerID, 2, "1")
	soldOut := helpers.CreateTestProduct(t, ts.DB, farmerID, 0, "1")

	w := helpers.MakeRequest(ts.Router, "DELETE", "/api/products/"+soldOut, nil, ts.GetAuthHeaders("farmer2"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = helpers.MakeRequest(ts.Router, "DELETE", "/api/products/"+stocked, nil, ts.GetAuthHeaders("farmer"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = helpers.MakeRequest(ts.Router, "DELETE", "/api/products/missing", nil, ts.GetAuthHeaders("farmer"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = helpers.MakeRequest(ts.Router, "DELETE", "/api/products/"+soldOut, nil, ts.GetAuthHeaders("client"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = helpers.MakeRequest(ts.Router, "DELETE", "/api/products/"+soldOut, nil, ts.GetAuthHeaders("farmer"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Product deleted", helpers.DecodeObject(t, w)["message"])

	w = helpers.MakeRequest(ts.Router, "GET", "/api/products/"+soldOut, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
