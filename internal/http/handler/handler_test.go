package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"certgrouper/internal/archive"
	"certgrouper/internal/model"
	"certgrouper/internal/service"
	serviceMocks "certgrouper/internal/service/mocks"
	"certgrouper/internal/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// uploadRequest builds a multipart request with one part per name under the "files" field.
func uploadRequest(t *testing.T, target string, names ...string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, n := range names {
		part, err := writer.CreateFormFile(uploadField, n)
		require.NoError(t, err)
		_, err = part.Write([]byte("zip bytes of " + n))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func archivesNamed(names ...string) any {
	return mock.MatchedBy(func(in []model.InputArchive) bool {
		if len(in) != len(names) {
			return false
		}
		for i, a := range in {
			if a.Name != names[i] || string(a.Data) != "zip bytes of "+names[i] {
				return false
			}
		}
		return true
	})
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})

	t.Run("history not configured", func(t *testing.T) {
		app := fiber.New()
		app.Get("/health", HealthCheck(nil))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGroupBatch(t *testing.T) {
	mockSvc := new(serviceMocks.MockBatchService)
	app := fiber.New()
	app.Post("/batches", GroupBatch(mockSvc))

	t.Run("success", func(t *testing.T) {
		res := &model.BatchResult{
			ID:       uuid.NewString(),
			Filename: "Sharp_iHasco_Grouped.zip",
			Archive:  []byte("PK-grouped"),
			Summary:  model.Summary{ArchiveCount: 2, TotalDocuments: 2, GroupCount: 1},
		}
		mockSvc.On("Process", mock.Anything, archivesNamed("alice.zip", "bob.zip")).Return(res, nil).Once()

		resp, err := app.Test(uploadRequest(t, "/batches", "alice.zip", "bob.zip"))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="Sharp_iHasco_Grouped.zip"`)
		assert.Equal(t, res.ID, resp.Header.Get(headerBatchID))
		assert.Equal(t, "2", resp.Header.Get(headerDocumentCount))
		assert.Equal(t, "1", resp.Header.Get(headerGroupCount))

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "PK-grouped", string(body))
		mockSvc.AssertExpectations(t)
	})

	t.Run("no files is a no-op", func(t *testing.T) {
		mockSvc.On("Process", mock.Anything, archivesNamed()).
			Return(&model.BatchResult{Filename: "Sharp_iHasco_Grouped.zip"}, nil).Once()

		resp, _ := app.Test(uploadRequest(t, "/batches"))

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/batches", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILES_REQUIRED", decodeError(t, resp).Error.Code)
	})

	errCases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:    "bad archive names the upload",
			err:     &archive.BadArchiveError{Name: "carol.zip", Err: errors.New("zip: not a valid zip file")},
			status:  http.StatusUnprocessableEntity,
			code:    "BAD_ARCHIVE",
			message: "carol.zip is not a valid ZIP file",
		},
		{
			name:    "too many archives",
			err:     &service.LimitError{Uploaded: 51, Max: 50},
			status:  http.StatusBadRequest,
			code:    "TOO_MANY_ARCHIVES",
			message: "a maximum of 50 archives can be processed at a time",
		},
		{
			name:   "no qualifying documents",
			err:    service.ErrNoQualifyingDocuments,
			status: http.StatusUnprocessableEntity,
			code:   "NO_QUALIFYING_DOCUMENTS",
		},
		{
			name:   "deadline exceeded",
			err:    fmt.Errorf("package archive: %w", context.DeadlineExceeded),
			status: http.StatusGatewayTimeout,
			code:   "REQUEST_TIMEOUT",
		},
		{
			name:    "internal error is not leaked",
			err:     errors.New("disk on fire"),
			status:  http.StatusInternalServerError,
			code:    "INTERNAL_ERROR",
			message: "internal server error",
		},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			mockSvc.On("Process", mock.Anything, mock.Anything).Return(nil, tc.err).Once()

			resp, _ := app.Test(uploadRequest(t, "/batches", "x.zip"))

			assert.Equal(t, tc.status, resp.StatusCode)
			body := decodeError(t, resp)
			assert.Equal(t, tc.code, body.Error.Code)
			if tc.message != "" {
				assert.Equal(t, tc.message, body.Error.Message)
			}
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestPreviewBatch(t *testing.T) {
	mockSvc := new(serviceMocks.MockBatchService)
	app := fiber.New()
	app.Post("/batches/preview", PreviewBatch(mockSvc))

	sum := &model.Summary{
		ArchiveCount:   1,
		TotalDocuments: 1,
		GroupCount:     1,
		Groups:         []model.GroupCount{{Course: "Fire Safety", Folder: "Fire_Safety", Documents: 1}},
	}
	mockSvc.On("Preview", mock.Anything, archivesNamed("a.zip")).Return(sum, nil).Once()

	resp, err := app.Test(uploadRequest(t, "/batches/preview", "a.zip"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got model.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, *sum, got)
	mockSvc.AssertExpectations(t)
}

func TestPublishBatch(t *testing.T) {
	mockSvc := new(serviceMocks.MockBatchService)
	app := fiber.New()
	app.Post("/batches/publish", PublishBatch(mockSvc))

	t.Run("success", func(t *testing.T) {
		pub := &model.PublishedBatch{
			BatchID:     uuid.NewString(),
			ObjectKey:   "batches/x/Sharp_iHasco_Grouped.zip",
			DownloadURL: "https://minio.local/presigned",
			ExpiresAt:   time.Now().Add(time.Hour).UTC(),
		}
		mockSvc.On("Publish", mock.Anything, archivesNamed("a.zip")).Return(pub, nil).Once()

		resp, _ := app.Test(uploadRequest(t, "/batches/publish", "a.zip"))

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var got model.PublishedBatch
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, pub.BatchID, got.BatchID)
		assert.Equal(t, pub.DownloadURL, got.DownloadURL)
		mockSvc.AssertExpectations(t)
	})

	t.Run("storage disabled", func(t *testing.T) {
		mockSvc.On("Publish", mock.Anything, mock.Anything).Return(nil, service.ErrStorageDisabled).Once()

		resp, _ := app.Test(uploadRequest(t, "/batches/publish", "a.zip"))

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "STORAGE_DISABLED", decodeError(t, resp).Error.Code)
	})

	t.Run("nothing uploaded", func(t *testing.T) {
		mockSvc.On("Publish", mock.Anything, mock.Anything).Return(nil, service.ErrNoArchives).Once()

		resp, _ := app.Test(uploadRequest(t, "/batches/publish"))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILES_REQUIRED", decodeError(t, resp).Error.Code)
	})
}

func TestListBatches(t *testing.T) {
	mockSvc := new(serviceMocks.MockBatchService)
	app := fiber.New()
	app.Get("/batches", ListBatches(mockSvc))

	t.Run("success", func(t *testing.T) {
		expectedRes := &service.BatchListResult{
			Items: []model.Batch{{ID: uuid.NewString(), DocumentCount: 3}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, 10, 0).Return(expectedRes, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/batches?limit=10&offset=0", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.BatchListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/batches?limit=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_LIMIT", decodeError(t, resp).Error.Code)
	})

	t.Run("invalid offset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/batches?offset=x", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_OFFSET", decodeError(t, resp).Error.Code)
	})

	t.Run("history disabled", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 10, 0).Return(nil, service.ErrHistoryDisabled).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/batches", nil))

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "HISTORY_DISABLED", decodeError(t, resp).Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 10, 0).Return(nil, errors.New("service error")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/batches", nil))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetBatch(t *testing.T) {
	mockSvc := new(serviceMocks.MockBatchService)
	app := fiber.New()
	app.Get("/batches/:id", GetBatch(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.NewString()
		expected := &model.Batch{ID: id, Groups: []model.GroupCount{{Course: "COSHH", Folder: "COSHH", Documents: 4}}}
		mockSvc.On("Get", mock.Anything, id).Return(expected, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/batches/"+id, nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var result model.Batch
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, id, result.ID)
		assert.Equal(t, expected.Groups, result.Groups)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Get", mock.Anything, id).Return(nil, service.ErrNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/batches/"+id, nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/batches/invalid-uuid", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Error.Code)
	})
}

func TestDownloadBatch(t *testing.T) {
	mockSvc := new(serviceMocks.MockBatchService)
	app := fiber.New()
	app.Get("/batches/:id/download", DownloadBatch(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.NewString()
		info := storage.ObjectInfo{Key: "batches/" + id + "/Sharp_iHasco_Grouped.zip", Size: 3}
		mockSvc.On("Download", mock.Anything, id).
			Return(io.NopCloser(strings.NewReader("PK!")), info, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/batches/"+id+"/download", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "Sharp_iHasco_Grouped.zip")
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "PK!", string(body))
		mockSvc.AssertExpectations(t)
	})

	t.Run("not published", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Download", mock.Anything, id).
			Return(nil, storage.ObjectInfo{}, service.ErrNotPublished).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/batches/"+id+"/download", nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_PUBLISHED", decodeError(t, resp).Error.Code)
	})
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	mockSvc := new(serviceMocks.MockBatchService)
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "certgrouper_test_total", Help: "test"}))
	RegisterRoutes(app, nil, mockSvc, reg)

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp).Error.Code)
	})

	t.Run("metrics exposition", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "certgrouper_test_total")
	})

	t.Run("batch routes registered", func(t *testing.T) {
		mockSvc.On("Preview", mock.Anything, mock.Anything).Return(&model.Summary{}, nil).Once()

		resp, _ := app.Test(uploadRequest(t, "/batches/preview"))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}
