package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestHandleCreateIndex(t *testing.T) {
	assert := require.New(t)
	router := setupTestServer(t, assert)

	w := makeTestHTTPRequest(router, assert, http.MethodPost, "/index", defaultTestRequestHeaders, nil, nil)
	responseBytes := w.Body.Bytes()
	assert.Equal(http.StatusAccepted, w.Code, fmt.Sprintf("response gotten was %s", string(responseBytes)))

	var indexResponse struct {
		Data   IndexResponse `json:"data"`
		Errors []string      `json:"errors"`
	}
	assert.NoError(json.Unmarshal(responseBytes, &indexResponse))

	requestID, err := uuid.Parse(indexResponse.Data.RequestID)
	assert.NoError(err, "got an error parsing gotten request_id into UUID")

	waitForIndexUpdate(assert, router, requestID.String())

	// A second update after the first completed is accepted and is a no-op.
	w = makeTestHTTPRequest(router, assert, http.MethodPost, "/index", defaultTestRequestHeaders, nil, nil)
	assert.Equal(http.StatusAccepted, w.Code)

	assert.NoError(json.Unmarshal(w.Body.Bytes(), &indexResponse))
	waitForIndexUpdate(assert, router, indexResponse.Data.RequestID)
}

func TestHandleIndexStatusNotFound(t *testing.T) {
	assert := require.New(t)
	router := setupTestServer(t, assert)

	w := makeTestHTTPRequest(router, assert, http.MethodGet, fmt.Sprintf("/index/%s", uuid.New().String()), nil, nil, nil)
	assert.Equal(http.StatusNotFound, w.Code)
}
