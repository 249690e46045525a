// Common test helpers
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/agentmemory/memsearch/db/kvdb"
	"github.com/agentmemory/memsearch/docstore"
	"github.com/agentmemory/memsearch/logger"
	indexservice "github.com/agentmemory/memsearch/services/index"
	searchservice "github.com/agentmemory/memsearch/services/search"
	"github.com/agentmemory/memsearch/validation"
)

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json"}

var testFiles = map[string]string{
	"MEMORY.md":            "# Memory\n\nstanding summary: rotate the moltbook credentials",
	"2024-06-01.md":        "met with the platform team\nalpha rollout notes",
	"notes/postmortem.txt": "incident caused by expired credentials",
	"notes/config.json":    `{"service": "billing", "owner": "platform"}`,
}

type testCase struct {
	name           string
	requestHeaders map[string]string
	requestBody    map[string]any
	queryParams    map[string]string
	expectedStatus int
	expectedPaths  []string
}

func setupTestServer(t *testing.T, assert *require.Assertions) *gin.Engine {
	t.Helper()

	root := t.TempDir()
	for relPath, content := range testFiles {
		fullPath := filepath.Join(root, filepath.FromSlash(relPath))
		err := os.MkdirAll(filepath.Dir(fullPath), 0755)
		assert.NoError(err, "could not create test sub-directory")
		err = os.WriteFile(fullPath, []byte(content), 0644)
		assert.NoError(err, "could not write test file")
	}

	testLogger := logger.New()

	kvDB, err := kvdb.New(testLogger, filepath.Join(t.TempDir(), "meta.db"))
	assert.NoError(err, "could not create kv database")
	t.Cleanup(func() { kvDB.Close() })

	store := docstore.New(root, testLogger)
	indexService := indexservice.New(context.Background(), testLogger, store, kvDB, nil,
		filepath.Join(t.TempDir(), "index.json"))
	searchService := searchservice.New(testLogger, indexService, store, nil)

	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")

	gin.SetMode(gin.TestMode)
	router := gin.New()

	SetupIndex(router, testLogger, indexService)
	SetupSearch(router, testLogger, searchService, validator)
	SetupStats(router, testLogger, indexService)

	return router
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBodyMap map[string]interface{}, queryParams map[string]string) *httptest.ResponseRecorder {

	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		endpoint = endpoint + "?"
		for key, value := range queryParams {
			if endpoint[len(endpoint)-1] != '?' {
				endpoint = endpoint + "&"
			}
			endpoint = endpoint + key + "=" + url.QueryEscape(value)
		}
	}
	var jsonBody []byte
	var req *http.Request
	if requestBodyMap != nil {
		jsonBody, err = json.Marshal(requestBodyMap)
		assert.NoError(err)
	}

	if len(jsonBody) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(jsonBody))
	} else {
		req, err = http.NewRequest(method, endpoint, nil)
	}
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)

	return w
}

// waitForIndexUpdate polls the status endpoint until the async update
// completes.
func waitForIndexUpdate(assert *require.Assertions, router *gin.Engine, requestID string) {

	maxWaitForIndexUpdate := 10 * time.Second

	for startTime := time.Now().UTC(); time.Since(startTime) < maxWaitForIndexUpdate; time.Sleep(20 * time.Millisecond) {
		w := makeTestHTTPRequest(router, assert, http.MethodGet, fmt.Sprintf("/index/%s", requestID), nil, nil, nil)
		assert.Equal(http.StatusOK, w.Code)

		var statusResponse struct {
			Data IndexStatusResponse `json:"data"`
		}
		assert.NoError(json.Unmarshal(w.Body.Bytes(), &statusResponse))
		assert.NotEqual(indexservice.ProgressStatusFailed, statusResponse.Data.Status, "index update must not fail")
		if statusResponse.Data.Status == indexservice.ProgressStatusComplete {
			return
		}
	}
	assert.Fail("timed out waiting for index update: ", requestID)
}
