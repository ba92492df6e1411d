package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusBadRequest, errors.New("bad budget"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Bad Request", resp.Error)
	require.Equal(t, "bad budget", resp.Message)
}

func TestParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=10&header=true&bad=x", nil)

	v, ok := IntParam(r, "limit", 50)
	require.True(t, ok)
	require.Equal(t, 10, v)

	v, ok = IntParam(r, "missing", 50)
	require.True(t, ok)
	require.Equal(t, 50, v)

	_, ok = IntParam(r, "bad", 0)
	require.False(t, ok)

	b, ok := BoolParam(r, "header", false)
	require.True(t, ok)
	require.True(t, b)

	_, ok = BoolParam(r, "bad", false)
	require.False(t, ok)
}
