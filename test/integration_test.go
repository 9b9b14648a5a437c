package test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrimarket-backend/test/helpers"
)

// TestMarketplaceFlow drives the whole API the way the mobile app does:
// register, list produce, buy, watch the sale arrive on the farmer's feed,
// then read both ledgers and clear the sold-out listing.
func TestMarketplaceFlow(t *testing.T) {
	ts := helpers.NewTestSuite(t)
	server := httptest.NewServer(ts.Router)
	t.Cleanup(server.Close)

	register := func(name, phone, role string) string {
		w := helpers.MakeRequest(ts.Router, "POST", "/api/auth/register", map[string]interface{}{
			"name":        name,
			"phoneNumber": phone,
			"password":    "mavuno2024",
			"role":        role,
			"farmName":    name + " Farm",
		}, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		return helpers.DecodeObject(t, w)["token"].(string)
	}
	farmerToken := register("Kamau", "+254722000100", "farmer")
	clientToken := register("Achieng", "+254722000200", "client")
	bearer := func(token string) map[string]string {
		return map[string]string{"Authorization": "Bearer " + token}
	}

	w := helpers.MakeRequest(ts.Router, "POST", "/api/categories", map[string]interface{}{"name": "Leafy greens"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	categoryID := helpers.DecodeObject(t, w)["id"].(string)

	w = helpers.MakeRequest(ts.Router, "POST", "/api/products", map[string]interface{}{
		"name":     "Sukuma wiki",
		"quantity": "4",
		"price":    "35.50",
		"category": categoryID,
	}, bearer(farmerToken))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	productID := helpers.DecodeObject(t, w)["id"].(string)

	feedURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/transactions/feed?token=" + farmerToken
	conn, _, err := websocket.DefaultDialer.Dial(feedURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var msg map[string]interface{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "connected", msg["type"])

	w = helpers.MakeRequest(ts.Router, "POST", "/api/transactions/buy", map[string]interface{}{
		"productId": productID,
		"quantity":  4,
	}, bearer(clientToken))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	purchase := helpers.DecodeObject(t, w)
	assert.Equal(t, 142.0, purchase["totalAmount"])

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "sale", msg["type"])
	sale, ok := msg["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, purchase["id"], sale["id"])

	w = helpers.MakeRequest(ts.Router, "GET", "/api/products/"+productID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, helpers.DecodeObject(t, w)["quantity"])

	w = helpers.MakeRequest(ts.Router, "POST", "/api/transactions/buy", map[string]interface{}{
		"productId": productID,
	}, bearer(clientToken))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = helpers.MakeRequest(ts.Router, "GET", "/api/transactions/farmer", nil, bearer(farmerToken))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, helpers.DecodeArray(t, w), 1)

	w = helpers.MakeRequest(ts.Router, "DELETE", "/api/products/"+productID, nil, bearer(farmerToken))
	require.Equal(t, http.StatusOK, w.Code)

	// the ledger outlives the listing
	w = helpers.MakeRequest(ts.Router, "GET", "/api/transactions/client", nil, bearer(clientToken))
	require.Equal(t, http.StatusOK, w.Code)
	history := helpers.DecodeArray(t, w)
	require.Len(t, history, 1)
	assert.Equal(t, productID, history[0]["product"])
	assert.Equal(t, 142.0, history[0]["totalAmount"])
}

func TestFeedRejectsClientsAndAnonymous(t *testing.T) {
	ts := helpers.NewTestSuite(t)
	server := httptest.NewServer(ts.Router)
	t.Cleanup(server.Close)

	base := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/transactions/feed"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"?token="+ts.Users["client"].Token, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestConcurrentBuyersOverHTTP(t *testing.T) {
	ts := helpers.NewTestSuite(t)
	productID := helpers.CreateTestProduct(t, ts.DB, ts.Users["farmer"].ID, 5, "10")

	var wg sync.WaitGroup
	var mu sync.Mutex
	statuses := map[int]int{}

	for i := 0; i < 12; i++ {
		user := "client"
		if i%2 == 1 {
			user = "client2"
		}
		wg.Add(1)
		go func(headers map[string]string) {
			defer wg.Done()
			w := helpers.MakeRequest(ts.Router, "POST", "/api/transactions/buy", map[string]interface{}{
				"productId": productID,
			}, headers)
			mu.Lock()
			statuses[w.Code]++
			mu.Unlock()
		}(ts.GetAuthHeaders(user))
	}
	wg.Wait()

	assert.Equal(t, 5, statuses[http.StatusCreated])
	assert.Equal(t, 7, statuses[http.StatusBadRequest])
	assert.Equal(t, 0, helpers.ProductQuantity(t, ts.DB, productID))
	assert.Equal(t, 5, helpers.CountRows(t, ts.DB, "transactions"))
}
