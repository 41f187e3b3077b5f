package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/umworks/aurora-sync/internal/aurora"
	"github.com/umworks/aurora-sync/internal/extract"
	"github.com/umworks/aurora-sync/internal/models"
	"github.com/umworks/aurora-sync/internal/repository"
	"github.com/umworks/aurora-sync/internal/service"
)

const handlerClasslist = `Course,,CRN,Duration,,
STAT 1000 - A01,,12345,"Sep 09, 2026 - Dec 11, 2026",,
Record Number,ID,Student Name,Email,Reg Status,Grade Mode/AutoGrade
1,06713309,"Smith, Jane",jsmith@cc.umanitoba.ca,Registered Web,
`

type runnerMock struct {
	result *aurora.Result
}

func (m *runnerMock) Run(ctx context.Context, db repository.DBTX, ext *extract.Extract, opts aurora.Options) (*aurora.Result, int, error) {
	return m.result, 0, nil
}

type importJobsMock struct{}

func (m *importJobsMock) Create(ctx context.Context, job *models.ImportJob) error { return nil }
func (m *importJobsMock) FindByID(ctx context.Context, id string) (*models.ImportJob, error) {
	return &models.ImportJob{ID: id, Status: models.ImportStatusFinished}, nil
}
func (m *importJobsMock) MarkProcessing(ctx context.Context, id string) error { return nil }
func (m *importJobsMock) MarkFinished(ctx context.Context, id string, result *models.ImportResult) error {
	return nil
}
func (m *importJobsMock) MarkFailed(ctx context.Context, id, message string) error { return nil }

func newImportHandler() *ImportHandler {
	svc := service.NewImportService(
		nil,
		&runnerMock{result: &aurora.Result{TotalRows: 1, SavedRows: 1}},
		nil,
		&importJobsMock{},
		nil,
		nil,
		nil,
		nil,
		zap.NewNop(),
	)
	return NewImportHandler(svc, 0)
}

func multipartUpload(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestImportHandlerDryRun(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newImportHandler()
	body, contentType := multipartUpload(t, map[string]string{"dryRun": "true"}, "classlist.csv", handlerClasslist)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.ImportJob `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, models.ImportStatusFinished, envelope.Data.Status)
	assert.Equal(t, models.ImportKindClasslist, envelope.Data.Kind)
	require.NotNil(t, envelope.Data.Result)
	assert.Equal(t, 1, envelope.Data.Result.SavedRows)
}

func TestImportHandlerMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newImportHandler()
	body, contentType := multipartUpload(t, map[string]string{"dryRun": "true"}, "", "")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportHandlerMalformedExtract(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newImportHandler()
	body, contentType := multipartUpload(t, map[string]string{"dryRun": "true"}, "noise.csv", "not,a,real\nextract,at,all\n")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req

	handler.Create(c)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestImportHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newImportHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/imports/job-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.ImportJob `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "job-1", envelope.Data.ID)
}
