package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var searchHandlerTestCases = []testCase{
	{
		name:           "NoQuery",
		queryParams:    map[string]string{},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "EmptyQuery",
		queryParams:    map[string]string{"query": ""},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "QueryTooLong",
		queryParams:    map[string]string{"query": strings.Repeat("a", 1001)},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "InvalidLimit",
		queryParams:    map[string]string{"query": "test", "limit": "-1"},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "LimitTooLarge",
		queryParams:    map[string]string{"query": "test", "limit": "101"},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "NonNumericLimit",
		queryParams:    map[string]string{"query": "test", "limit": "ten"},
		expectedStatus: http.StatusUnprocessableEntity,
	},
	{
		name:           "SearchSingleTerm",
		queryParams:    map[string]string{"query": "moltbook"},
		expectedStatus: http.StatusOK,
		expectedPaths:  []string{"MEMORY.md"},
	},
	{
		name:           "SearchTermInTwoFiles",
		queryParams:    map[string]string{"query": "credentials"},
		expectedStatus: http.StatusOK,
		expectedPaths:  []string{"MEMORY.md", "notes/postmortem.txt"},
	},
	{
		name:           "SearchJSONContent",
		queryParams:    map[string]string{"query": "billing"},
		expectedStatus: http.StatusOK,
		expectedPaths:  []string{"notes/config.json"},
	},
	{
		name:           "SearchCaseInsensitive",
		queryParams:    map[string]string{"query": "MOLTBOOK"},
		expectedStatus: http.StatusOK,
		expectedPaths:  []string{"MEMORY.md"},
	},
	{
		name:           "SearchMultiTerm",
		queryParams:    map[string]string{"query": "rotate credentials"},
		expectedStatus: http.StatusOK,
		expectedPaths:  []string{"MEMORY.md"},
	},
	{
		name:           "SearchNoResults",
		queryParams:    map[string]string{"query": "nonexistent"},
		expectedStatus: http.StatusOK,
		expectedPaths:  []string{},
	},
}

func TestHandleSearch(t *testing.T) {
	assert := require.New(t)
	router := setupTestServer(t, assert)

	// The first search builds the index before answering, so no explicit
	// update request is needed here.
	for _, testCase := range searchHandlerTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(router, assert, http.MethodGet, "/search", testCase.requestHeaders, nil, testCase.queryParams)
			responseBytes := w.Body.Bytes()
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", string(responseBytes)))

			if testCase.expectedPaths == nil {
				return
			}

			var searchResponse struct {
				Data SearchResponse `json:"data"`
			}
			assert.NoError(json.Unmarshal(responseBytes, &searchResponse))

			gotPaths := map[string]bool{}
			for _, result := range searchResponse.Data.Results {
				gotPaths[result.Path] = true
				assert.Positive(result.Line, "every result must carry a 1-based line number")
				assert.NotEmpty(result.Snippet, "every result must carry the matched line text")
				assert.Positive(result.Score)
			}

			for _, expectedPath := range testCase.expectedPaths {
				assert.True(gotPaths[expectedPath], fmt.Sprintf("expected path %s not found in results", expectedPath))
			}
			if len(testCase.expectedPaths) == 0 {
				assert.Empty(searchResponse.Data.Results)
				assert.Zero(searchResponse.Data.Total)
			}
		})
	}
}

func TestHandleSearchSnippet(t *testing.T) {
	assert := require.New(t)
	router := setupTestServer(t, assert)

	w := makeTestHTTPRequest(router, assert, http.MethodGet, "/search", nil, nil, map[string]string{"query": "moltbook"})
	assert.Equal(http.StatusOK, w.Code)

	var searchResponse struct {
		Data SearchResponse `json:"data"`
	}
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &searchResponse))
	assert.Len(searchResponse.Data.Results, 1)

	result := searchResponse.Data.Results[0]
	assert.Equal("MEMORY.md", result.Path)
	assert.Equal(3, result.Line)
	assert.Equal("standing summary: rotate the moltbook credentials", result.Snippet)
}
