package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomehub/metareg/pkg/config"
	"github.com/genomehub/metareg/pkg/service"
	"github.com/genomehub/metareg/pkg/store/sql"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	cfg := config.Default()
	cfg.Version = "test"
	cfg.StoreURL = fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", uuid.NewString())

	metadataService, err := service.NewMetadataService(logger, cfg)
	require.NoError(t, err)

	sqlStore, ok := metadataService.Store.(*sql.Store)
	require.True(t, ok)
	require.NoError(t, sqlStore.Migrate())

	return NewApp(cfg, metadataService)
}

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, errorResponse) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed errorResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &parsed)
	}

	return resp.StatusCode, parsed
}

func TestHealthAndVersion(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/version", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "test", string(body))
}

func TestAdvanceUnknownDataset(t *testing.T) {
	app := newTestApp(t)

	status, parsed := doJSON(t, app,
		http.MethodPost,
		"/api/v1/datasets/"+uuid.NewString()+"/advance",
		`{"target": "Processing"}`,
	)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "DATASET_NOT_FOUND", parsed.ErrorCode)
}

func TestAdvanceMissingTarget(t *testing.T) {
	app := newTestApp(t)

	status, parsed := doJSON(t, app,
		http.MethodPost,
		"/api/v1/datasets/"+uuid.NewString()+"/advance",
		`{}`,
	)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_PARAMETER_VALUE", parsed.ErrorCode)
	assert.Contains(t, parsed.Message, "target")
}

func TestSubmitDatasetRejectsWrongType(t *testing.T) {
	app := newTestApp(t)

	status, parsed := doJSON(t, app,
		http.MethodPost,
		"/api/v1/datasets",
		`{"genome_uuid": 5}`,
	)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_PARAMETER_VALUE", parsed.ErrorCode)
}

func TestReleaseIDMustBeInteger(t *testing.T) {
	app := newTestApp(t)

	status, parsed := doJSON(t, app, http.MethodGet, "/api/v1/releases/abc", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_PARAMETER_VALUE", parsed.ErrorCode)
}

func TestUnknownEndpoint(t *testing.T) {
	app := newTestApp(t)

	status, parsed := doJSON(t, app, http.MethodGet, "/api/v1/nothing-here", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "ENDPOINT_NOT_FOUND", parsed.ErrorCode)
}

func TestFinalizeRejectsBadExclusions(t *testing.T) {
	app := newTestApp(t)

	status, parsed := doJSON(t, app,
		http.MethodPost,
		"/api/v1/releases/1/finalize",
		`{"exclude_genomes": ["not-a-uuid"]}`,
	)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_PARAMETER_VALUE", parsed.ErrorCode)
}
