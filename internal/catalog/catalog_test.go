package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	assert.True(t, c.HasCategory("Plumbing"))
	assert.False(t, c.HasCategory("plumbing"))
	assert.True(t, c.HasExperience("1-3"))
	assert.True(t, c.HasExperience("more-10"))
	assert.False(t, c.HasExperience("forever"))
	assert.True(t, c.HasWeekday("Monday"))
	assert.True(t, c.HasWeekday("sunday"))
	assert.False(t, c.HasWeekday("funday"))
	assert.Len(t, c.Weekdays, 7)
}

func TestParseRejectsEmptyLists(t *testing.T) {
	_, err := Parse([]byte("categories: [a]\nexperience: []\nweekdays: []\n"))
	require.Error(t, err)

	_, err = Parse([]byte("categories: {"))
	require.Error(t, err)
}

func TestHandler(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/catalog", nil), rec)

	require.NoError(t, Default().Handler(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var got Catalog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, Default().Categories, got.Categories)
}
