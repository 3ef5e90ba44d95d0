package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mia/internal/evaluation"
	"github.com/inferloop/mia/internal/generators"
	"github.com/inferloop/mia/internal/jobs"
	"github.com/inferloop/mia/internal/observability/metrics"
	"github.com/inferloop/mia/internal/storage"
	"github.com/inferloop/mia/internal/storage/implementations/file"
	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/tests/helpers"
)

type testServer struct {
	*httptest.Server
	store *storage.DatasetStore
}

func newTestServer(t *testing.T) *testServer {
	env := helpers.NewTestEnvironment(t)

	collector, err := metrics.NewCollector(metrics.DefaultConfig(), env.Logger)
	require.NoError(t, err)

	blobs, err := file.NewFileStorage(&file.FileStorageConfig{BasePath: env.Config.TempDir}, env.Logger)
	require.NoError(t, err)
	store := storage.NewDatasetStore(blobs, env.Logger, collector)
	factory := generators.NewFactory(env.Logger, collector)
	evaluator := evaluation.NewEvaluator(nil, store, factory, env.Logger, collector)

	srv, err := NewServer(DefaultConfig(), NewHandlers(evaluator, store, factory, jobs.NewQueue(1, 0, env.Logger), env.Logger), collector, env.Logger)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, store: store}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (int, []byte) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set(constants.HeaderContentType, constants.MimeTypeJSON)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/health", nil)
	helpers.AssertHTTPResponse(t, status, body, http.StatusOK, "healthy")
	helpers.AssertJSONResponse(t, body, map[string]interface{}{
		"status":  "healthy",
		"storage": constants.StorageTypeFile,
	})
}

func TestHealthStorageDown(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Backend().Close())

	status, body := ts.do(t, http.MethodGet, "/health", nil)
	helpers.AssertHTTPResponse(t, status, body, http.StatusServiceUnavailable, "unhealthy", "file storage is closed")
}

func TestDatasetLifecycle(t *testing.T) {
	ts := newTestServer(t)

	upload := map[string]interface{}{
		"description": json.RawMessage(helpers.TestDescriptionJSON),
		"csv":         "20,1000,F\n21,2000,M\n",
	}
	status, body := ts.do(t, http.MethodPut, constants.APIPrefix+"/datasets/adult", upload)
	helpers.AssertHTTPResponse(t, status, body, http.StatusCreated)
	helpers.AssertJSONResponse(t, body, map[string]interface{}{"name": "adult", "records": float64(2)})

	status, body = ts.do(t, http.MethodGet, constants.APIPrefix+"/datasets", nil)
	helpers.AssertHTTPResponse(t, status, body, http.StatusOK, "adult")

	status, body = ts.do(t, http.MethodGet, constants.APIPrefix+"/datasets/adult", nil)
	helpers.AssertHTTPResponse(t, status, body, http.StatusOK, "income")

	status, _ = ts.do(t, http.MethodDelete, constants.APIPrefix+"/datasets/adult", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = ts.do(t, http.MethodGet, constants.APIPrefix+"/datasets/adult", nil)
	helpers.AssertHTTPResponse(t, status, body, http.StatusNotFound, "DATA_NOT_FOUND")
}

func TestGetDatasetAsCSV(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Save(t.Context(), "adult", helpers.TestDataset(t, 2)))

	req, err := http.NewRequest(http.MethodGet, ts.URL+constants.APIPrefix+"/datasets/adult", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", constants.MimeTypeCSV)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "20,1000,F\n21,2000,M\n", string(data))
}

func TestPutDatasetRejectsBadRows(t *testing.T) {
	ts := newTestServer(t)

	upload := map[string]interface{}{
		"description": json.RawMessage(helpers.TestDescriptionJSON),
		"csv":         "20,1000,X\n",
	}
	status, body := ts.do(t, http.MethodPut, constants.APIPrefix+"/datasets/bad", upload)
	helpers.AssertHTTPResponse(t, status, body, http.StatusBadRequest)

	status, body = ts.do(t, http.MethodPut, constants.APIPrefix+"/datasets/bad", map[string]interface{}{"csv": ""})
	helpers.AssertHTTPResponse(t, status, body, http.StatusBadRequest, "description is required")
}

func TestCreateEvaluation(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Save(t.Context(), "census", helpers.RandomDataset(t, 40, 50000, 9)))

	req := evaluation.Request{
		Dataset:            "census",
		TargetID:           0,
		TrainingSize:       20,
		SyntheticSize:      10,
		NumTrainingSamples: 10,
		NumTestSamples:     6,
		Seed:               1,
	}
	status, body := ts.do(t, http.MethodPost, constants.APIPrefix+"/evaluations", req)
	helpers.AssertHTTPResponse(t, status, body, http.StatusOK, "run_id", "advantage")

	var result evaluation.Result
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Len(t, result.Scores, 6)
	assert.Equal(t, "census", result.Dataset)
}

func TestCreateEvaluationErrors(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Save(t.Context(), "tiny", helpers.TestDataset(t, 5)))

	status, body := ts.do(t, http.MethodPost, constants.APIPrefix+"/evaluations", map[string]interface{}{"dataset": "missing"})
	helpers.AssertHTTPResponse(t, status, body, http.StatusNotFound)

	status, body = ts.do(t, http.MethodPost, constants.APIPrefix+"/evaluations", map[string]interface{}{"dataset": "tiny", "target_id": -1})
	helpers.AssertHTTPResponse(t, status, body, http.StatusBadRequest)

	status, body = ts.do(t, http.MethodPost, constants.APIPrefix+"/evaluations", map[string]interface{}{"dataset": "tiny", "target_id": 9})
	helpers.AssertHTTPResponse(t, status, body, http.StatusNotFound, "LOOKUP_FAILED")

	status, body = ts.do(t, http.MethodPost, constants.APIPrefix+"/evaluations", map[string]interface{}{"dataset": "tiny", "bogus": true})
	helpers.AssertHTTPResponse(t, status, body, http.StatusBadRequest, "INVALID_FORMAT")
}

func TestJobLifecycle(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Save(t.Context(), "census", helpers.TestDataset(t, 10)))

	status, body := ts.do(t, http.MethodPost, constants.APIPrefix+"/jobs", map[string]interface{}{"dataset": "census", "target_id": 2})
	helpers.AssertHTTPResponse(t, status, body, http.StatusAccepted, "pending")

	var job jobs.Job
	require.NoError(t, json.Unmarshal(body, &job))
	require.NotEmpty(t, job.ID)

	status, body = ts.do(t, http.MethodGet, constants.APIPrefix+"/worker/jobs?worker_id=w1&limit=4", nil)
	helpers.AssertHTTPResponse(t, status, body, http.StatusOK)
	var claimed []*jobs.Job
	require.NoError(t, json.Unmarshal(body, &claimed))
	require.Len(t, claimed, 1)
	assert.Equal(t, job.ID, claimed[0].ID)
	assert.Equal(t, jobs.StatusRunning, claimed[0].Status)

	anonymous := jobs.StatusUpdate{Status: jobs.StatusFailed, Error: "not mine"}
	status, body = ts.do(t, http.MethodPut, constants.APIPrefix+"/worker/jobs/"+job.ID+"/status", anonymous)
	helpers.AssertHTTPResponse(t, status, body, http.StatusBadRequest, "worker id is required")

	update := jobs.StatusUpdate{
		WorkerID: "w1",
		Status:   jobs.StatusCompleted,
		Result:   &evaluation.Result{RunID: "r1", Accuracy: 0.75},
	}
	status, body = ts.do(t, http.MethodPut, constants.APIPrefix+"/worker/jobs/"+job.ID+"/status", update)
	helpers.AssertHTTPResponse(t, status, body, http.StatusOK, "completed")

	status, body = ts.do(t, http.MethodGet, constants.APIPrefix+"/jobs/"+job.ID, nil)
	helpers.AssertHTTPResponse(t, status, body, http.StatusOK, `"run_id":"r1"`)

	status, body = ts.do(t, http.MethodGet, constants.APIPrefix+"/jobs?status=completed", nil)
	helpers.AssertHTTPResponse(t, status, body, http.StatusOK)
	helpers.AssertJSONResponse(t, body, map[string]interface{}{"count": float64(1)})

	status, body = ts.do(t, http.MethodPut, constants.APIPrefix+"/worker/jobs/"+job.ID+"/status", update)
	helpers.AssertHTTPResponse(t, status, body, http.StatusConflict)
}

func TestJobErrors(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, constants.APIPrefix+"/jobs", map[string]interface{}{"dataset": "missing"})
	helpers.AssertHTTPResponse(t, status, body, http.StatusNotFound)

	status, body = ts.do(t, http.MethodGet, constants.APIPrefix+"/jobs/nope", nil)
	helpers.AssertHTTPResponse(t, status, body, http.StatusNotFound, "job nope not found")

	status, body = ts.do(t, http.MethodGet, constants.APIPrefix+"/worker/jobs?limit=2", nil)
	helpers.AssertHTTPResponse(t, status, body, http.StatusBadRequest, "worker id is required")

	status, body = ts.do(t, http.MethodGet, constants.APIPrefix+"/worker/jobs?worker_id=w1&limit=x", nil)
	helpers.AssertHTTPResponse(t, status, body, http.StatusBadRequest, "invalid limit")
}

func TestListGeneratorsAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, constants.APIPrefix+"/generators", nil)
	helpers.AssertHTTPResponse(t, status, body, http.StatusOK, constants.GeneratorTypeRaw, constants.GeneratorTypeMarginals)

	status, body = ts.do(t, http.MethodGet, "/metrics", nil)
	helpers.AssertHTTPResponse(t, status, body, http.StatusOK, "mia_http_requests_total")
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/nope", nil)
	helpers.AssertHTTPResponse(t, status, body, http.StatusNotFound, "route not found")
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, "0.0.0.0:8080", config.GetAddress())

	config.Port = 0
	assert.Error(t, config.Validate())

	_, err := NewServer(config, nil, nil, nil)
	assert.Error(t, err)
}
