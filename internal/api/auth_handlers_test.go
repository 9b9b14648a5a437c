package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrimarket-backend/test/helpers"
)

func TestRegisterAndLogin(t *testing.T) {
	ts := helpers.NewTestSuite(t)

	registration := map[string]interface{}{
		"name":        "Baraka",
		"phoneNumber": "+254 700 123 456",
		"password":    "harvest1",
		"role":        "farmer",
		"farmName":    "Baraka Farm",
		"location":    "Nakuru",
	}

	w := helpers.MakeRequest(ts.Router, "POST", "/api/auth/register", registration, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	registered := helpers.DecodeObject(t, w)
	assert.NotEmpty(t, registered["id"])
	assert.Equal(t, registered["id"], registered["_id"])
	assert.Equal(t, "Baraka", registered["name"])
	assert.Equal(t, "+254700123456", registered["phoneNumber"])
	assert.Equal(t, "farmer", registered["role"])
	assert.Equal(t, "Baraka Farm", registered["farmName"])
	assert.Equal(t, "Nakuru", registered["location"])
	assert.NotEmpty(t, registered["token"])
	assert.NotContains(t, registered, "password")
	assert.NotContains(t, registered, "passwordHash")

	t.Run("DuplicatePhone", func(t *testing.T) {
		w := helpers.MakeRequest(ts.Router, "POST", "/api/auth/register", registration, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "User already exists", helpers.DecodeObject(t, w)["message"])
	})

	t.Run("MissingFields", func(t *testing.T) {
		w := helpers.MakeRequest(ts.Router, "POST", "/api/auth/register", map[string]interface{}{
			"name": "NoPhone", "password": "harvest1", "role": "client",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, helpers.DecodeObject(t, w)["message"])
	})

	t.Run("LoginResolvesSameIdentity", func(t *testing.T) {
		w := helpers.MakeRequest(ts.Router, "POST", "/api/auth/login", map[string]interface{}{
			"phoneNumber": "+254700123456",
			"password":    "harvest1",
		}, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		login := helpers.DecodeObject(t, w)
		assert.Equal(t, registered["id"], login["id"])
		token, ok := login["token"].(string)
		require.True(t, ok)

		w = helpers.MakeRequest(ts.Router, "GET", "/api/auth/me", nil, map[string]string{"Authorization": "Bearer " + token})
		require.Equal(t, http.StatusOK, w.Code)
		me := helpers.DecodeObject(t, w)
		assert.Equal(t, registered["id"], me["id"])
		assert.NotContains(t, me, "token")
	})

	t.Run("WrongPassword", func(t *testing.T) {
		w := helpers.MakeRequest(ts.Router, "POST", "/api/auth/login", map[string]interface{}{
			"phoneNumber": "+254700123456",
			"password":    "wrong-one",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid phone number or password", helpers.DecodeObject(t, w)["message"])
	})

	t.Run("UnknownPhone", func(t *testing.T) {
		w := helpers.MakeRequest(ts.Router, "POST", "/api/auth/login", map[string]interface{}{
			"phoneNumber": "+254799999999",
			"password":    "harvest1",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid phone number or password", helpers.DecodeObject(t, w)["message"])
	})

	t.Run("LoginMissingFields", func(t *testing.T) {
		w := helpers.MakeRequest(ts.Router, "POST", "/api/auth/login", map[string]interface{}{
			"phoneNumber": "+254700123456",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MeRequiresToken", func(t *testing.T) {
		w := helpers.MakeRequest(ts.Router, "GET", "/api/auth/me", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
