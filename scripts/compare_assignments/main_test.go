package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

func TestDiffIgnoresCaseAndReportsMissingSlots(t *testing.T) {
	left := []models.Assignment{
		{Period: 1, ClassName: "7A", Substitute: "Budi"},
		{Period: 2, ClassName: "7B", Substitute: "Sari"},
	}
	right := []models.Assignment{
		{Period: 1, ClassName: "7A", Substitute: "budi"},
		{Period: 3, ClassName: "8A", Substitute: "Rina"},
	}

	out := diff(left, right)
	require.Len(t, out, 2)
	assert.Equal(t, difference{Key: models.AssignmentKey{Period: 2, ClassName: "7B"}, Left: "Sari"}, out[0])
	assert.Equal(t, difference{Key: models.AssignmentKey{Period: 3, ClassName: "8A"}, Right: "Rina"}, out[1])
}

func TestCompareDateAgainstTwoServers(t *testing.T) {
	serve := func(body string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/substitutions/2024-03-04", r.URL.Path)
			assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(body))
		}))
	}
	left := serve(`{"data":{"date":"2024-03-04","assignments":[{"period":1,"className":"7A","substitute":"Budi"}]}}`)
	defer left.Close()
	right := serve(`{"data":{"date":"2024-03-04","assignments":[{"period":1,"className":"7A","substitute":"Sari"}]}}`)
	defer right.Close()

	comp := compareDate(http.DefaultClient, left.URL, right.URL, "/api/v1", "tkn", "2024-03-04")
	require.NoError(t, comp.Error)
	assert.Equal(t, 1, comp.LeftCount)
	require.Len(t, comp.Differences, 1)
	assert.Equal(t, "Budi", comp.Differences[0].Left)
	assert.Equal(t, "Sari", comp.Differences[0].Right)
}

func TestFetchSurfacesEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"VALIDATION_ERROR","message":"invalid date"}}`))
	}))
	defer srv.Close()

	_, err := fetch(http.DefaultClient, srv.URL, "/api/v1", "", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid date")
}

func TestSplitDates(t *testing.T) {
	assert.Equal(t, []string{"2024-03-04", "2024-03-05"}, splitDates(" 2024-03-04, ,2024-03-05"))
}
