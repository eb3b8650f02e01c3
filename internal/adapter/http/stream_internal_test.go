package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStreamRequest_Errors(t *testing.T) {
	_, err := parseStreamRequest(httptest.NewRequest(http.MethodGet, "/stream-generate?product=daily_lowres_density&country=BE", nil))
	require.ErrorIs(t, err, errMissingParams)
	assert.False(t, strings.HasSuffix(err.Error(), "."))

	_, err = parseStreamRequest(httptest.NewRequest(http.MethodGet, "/stream-generate?product=weekly&country=BE&year=2024&month=6&day=1", nil))
	require.ErrorIs(t, err, domain.ErrUnknownProduct)
	assert.False(t, strings.HasSuffix(err.Error(), "."))
}
