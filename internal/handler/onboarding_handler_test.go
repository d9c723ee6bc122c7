package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/onboarding-api/internal/dto"
	"github.com/noah-isme/onboarding-api/internal/models"
	"github.com/noah-isme/onboarding-api/internal/service"
	appErrors "github.com/noah-isme/onboarding-api/pkg/errors"
	"github.com/noah-isme/onboarding-api/pkg/storage"
)

const jwtSecret = "handler-secret"

type checklistServiceStub struct {
	lastActor   models.Actor
	lastUpload  service.DocumentUpload
	uploadBytes []byte
	toggleErr   error
	checklist   *models.ChecklistInstance
	item        *models.ChecklistItem
}

func (s *checklistServiceStub) CreateChecklist(ctx context.Context, req dto.CreateChecklistRequest, actor models.Actor) (*models.ChecklistInstance, error) {
	s.lastActor = actor
	if req.EmployeeID == "dup" {
		return nil, appErrors.ErrAlreadyExists
	}
	return &models.ChecklistInstance{ID: "checklist-1", EmployeeID: req.EmployeeID, Role: req.Role}, nil
}

func (s *checklistServiceStub) GetChecklistCached(ctx context.Context, employeeID string, actor models.Actor) (*models.ChecklistInstance, bool, error) {
	s.lastActor = actor
	if s.checklist == nil || s.checklist.EmployeeID != employeeID {
		return nil, false, appErrors.ErrNotFound
	}
	return s.checklist, true, nil
}

func (s *checklistServiceStub) ListChecklists(ctx context.Context, query dto.ChecklistQuery) ([]models.ChecklistInstance, *models.Pagination, error) {
	return []models.ChecklistInstance{{ID: "checklist-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (s *checklistServiceStub) ToggleItem(ctx context.Context, itemID string, isCompleted bool, actor models.Actor) (*models.ItemMutationResult, error) {
	s.lastActor = actor
	if s.toggleErr != nil {
		return nil, s.toggleErr
	}
	return &models.ItemMutationResult{Item: models.ChecklistItem{ID: itemID, IsCompleted: isCompleted}, Message: "Item marked as completed"}, nil
}

func (s *checklistServiceStub) UploadDocumentForItem(ctx context.Context, itemID string, upload service.DocumentUpload, actor models.Actor) (*models.ItemMutationResult, error) {
	s.lastActor = actor
	s.lastUpload = upload
	if upload.Content != nil {
		s.uploadBytes, _ = io.ReadAll(upload.Content)
	}
	return &models.ItemMutationResult{Item: models.ChecklistItem{ID: itemID}, Message: "Document uploaded"}, nil
}

func (s *checklistServiceStub) RecordAssessmentResult(ctx context.Context, itemID string, req dto.RecordAssessmentRequest, actor models.Actor) (*models.ChecklistItem, error) {
	s.lastActor = actor
	return &models.ChecklistItem{ID: itemID, PsychometricTestCompleted: true, PsychometricTestScore: req.Score}, nil
}

func (s *checklistServiceStub) VerifyDocument(ctx context.Context, itemID, notes string, actor models.Actor) (*models.ChecklistItem, error) {
	s.lastActor = actor
	return &models.ChecklistItem{ID: itemID, IsDocumentVerified: true, VerificationNotes: &notes}, nil
}

func (s *checklistServiceStub) GetItem(ctx context.Context, itemID string, actor models.Actor) (*models.ChecklistItem, error) {
	s.lastActor = actor
	if s.item == nil {
		return nil, appErrors.ErrNotFound
	}
	return s.item, nil
}

func (s *checklistServiceStub) PreviewTemplate(role string, department *string) dto.TemplatePreview {
	return dto.TemplatePreview{CatalogVersion: "test", Role: role, Department: department}
}

type exporterStub struct{ format string }

func (e *exporterStub) ExportOverview(ctx context.Context, query dto.ChecklistQuery, format string, actor models.Actor) (*service.ExportFile, error) {
	e.format = format
	return &service.ExportFile{Filename: "overview.csv", ContentType: "text/csv", Data: []byte("a,b\n")}, nil
}

func (e *exporterStub) ExportChecklist(ctx context.Context, employeeID, format string, actor models.Actor) (*service.ExportFile, error) {
	return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
}

type testServer struct {
	engine *gin.Engine
	stub   *checklistServiceStub
	links  *service.LinkService
	docs   *service.DocumentService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	docs := service.NewDocumentService(store, storage.NewSignedURLSigner("doc-secret", time.Hour), service.DocumentConfig{APIPrefix: "/api/v1"})
	links := service.NewLinkService(storage.NewSignedURLSigner("link-secret", time.Hour))
	stub := &checklistServiceStub{checklist: &models.ChecklistInstance{ID: "checklist-1", EmployeeID: "emp-1"}}

	engine := gin.New()
	RegisterRoutes(engine, engine.Group("/api/v1"), Routes{
		Auth:        service.NewAuthService(service.AuthConfig{Secret: jwtSecret}),
		Links:       links,
		Onboarding:  NewOnboardingHandler(stub, links, docs, &exporterStub{}, nil),
		Public:      NewPublicHandler(stub, docs),
		Documents:   NewDocumentHandler(docs),
		Metrics:     NewMetricsHandler(service.NewMetricsService(), nil),
		ExportsOpen: true,
	})
	return &testServer{engine: engine, stub: stub, links: links, docs: docs}
}

func bearer(t *testing.T, userID string, role models.UserRole) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, models.JWTClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func (s *testServer) do(method, path, auth string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestCreateChecklistReturnsPublicLink(t *testing.T) {
	srv := newTestServer(t)
	hr := bearer(t, "hr-1", models.RoleHR)

	w := srv.do(http.MethodPost, "/api/v1/onboarding/checklists", hr, jsonBody(t, dto.CreateChecklistRequest{EmployeeID: "emp-1", Role: "employee"}), "application/json")
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Data dto.CreateChecklistResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Data.PublicLink)
	employeeID, err := srv.links.Resolve(body.Data.PublicLink.Token)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", employeeID)
	assert.Equal(t, "hr-1", srv.stub.lastActor.UserID)

	w = srv.do(http.MethodPost, "/api/v1/onboarding/checklists", hr, jsonBody(t, dto.CreateChecklistRequest{EmployeeID: "dup", Role: "employee"}), "application/json")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_EXISTS")
}

func TestRoutesEnforceRoles(t *testing.T) {
	srv := newTestServer(t)
	employee := bearer(t, "emp-1", models.RoleEmployee)

	w := srv.do(http.MethodGet, "/api/v1/onboarding/checklists", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(http.MethodGet, "/api/v1/onboarding/checklists", employee, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = srv.do(http.MethodGet, "/api/v1/onboarding/checklists/emp-1", employee, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decodeEnvelope(t, w)["meta"]), `"cache_hit":true`)

	w = srv.do(http.MethodGet, "/api/v1/onboarding/checklists/emp-2", employee, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = srv.do(http.MethodPost, "/api/v1/onboarding/items/item-1/verify", employee, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	score := 75.0
	w = srv.do(http.MethodPost, "/api/v1/onboarding/items/item-1/assessment", bearer(t, "psychometrics", models.RoleService),
		jsonBody(t, dto.RecordAssessmentRequest{AttemptID: 3, Score: &score}), "application/json")
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(http.MethodGet, "/api/v1/onboarding/checklists", bearer(t, "hr-1", models.RoleHR), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decodeEnvelope(t, w)["pagination"]), `"total_count":1`)
}

func TestToggleEndpoint(t *testing.T) {
	srv := newTestServer(t)
	employee := bearer(t, "emp-1", models.RoleEmployee)

	w := srv.do(http.MethodPost, "/api/v1/onboarding/items/item-1/toggle", employee, jsonBody(t, map[string]bool{"is_completed": true}), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Item marked as completed")
	assert.Equal(t, models.Actor{UserID: "emp-1", Role: models.RoleEmployee, IP: "192.0.2.1"}, srv.stub.lastActor)

	w = srv.do(http.MethodPost, "/api/v1/onboarding/items/item-1/toggle", employee, jsonBody(t, map[string]string{}), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	srv.stub.toggleErr = appErrors.ErrDocumentRequired
	w = srv.do(http.MethodPost, "/api/v1/onboarding/items/item-1/toggle", employee, jsonBody(t, map[string]bool{"is_completed": true}), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "please upload the required document first")

	srv.stub.toggleErr = appErrors.Transient(assert.AnError, "checklist store unavailable")
	w = srv.do(http.MethodPost, "/api/v1/onboarding/items/item-1/toggle", employee, jsonBody(t, map[string]bool{"is_completed": true}), "application/json")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestUploadDocumentMultipartAndJSON(t *testing.T) {
	srv := newTestServer(t)
	employee := bearer(t, "emp-1", models.RoleEmployee)

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("file", "contract.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := srv.do(http.MethodPost, "/api/v1/onboarding/items/item-1/document", employee, buf, writer.FormDataContentType())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "contract.pdf", srv.stub.lastUpload.Name)
	assert.Equal(t, []byte("%PDF-1.4 test"), srv.stub.uploadBytes)

	w = srv.do(http.MethodPost, "/api/v1/onboarding/items/item-1/document", employee,
		jsonBody(t, dto.UploadDocumentRequest{DocumentURL: "https://files.example.com/c.pdf", DocumentName: "c.pdf"}), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://files.example.com/c.pdf", srv.stub.lastUpload.URL)
	assert.Nil(t, srv.stub.lastUpload.Content)

	buf = &bytes.Buffer{}
	writer = multipart.NewWriter(buf)
	require.NoError(t, writer.WriteField("document_name", "x"))
	require.NoError(t, writer.Close())
	w = srv.do(http.MethodPost, "/api/v1/onboarding/items/item-1/document", employee, buf, writer.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublicLinkRoutes(t *testing.T) {
	srv := newTestServer(t)
	link, err := srv.links.Issue("emp-1")
	require.NoError(t, err)

	w := srv.do(http.MethodGet, "/api/v1/public/checklists/"+link.Token, "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, srv.stub.lastActor.Public)
	assert.Equal(t, "emp-1", srv.stub.lastActor.UserID)

	w = srv.do(http.MethodPost, "/api/v1/public/checklists/"+link.Token+"/items/item-1/toggle", "", jsonBody(t, map[string]bool{"is_completed": true}), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, srv.stub.lastActor.Public)

	w = srv.do(http.MethodGet, "/api/v1/public/checklists/garbage", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDocumentLinkAndDownload(t *testing.T) {
	srv := newTestServer(t)
	ref, err := srv.docs.Save("item-1", models.DocumentKindPDF, "contract.pdf", bytes.NewReader([]byte("%PDF-1.4\n%%EOF\n")))
	require.NoError(t, err)
	srv.stub.item = &models.ChecklistItem{ID: "item-1", RequiresDocument: true, DocumentURL: &ref.URL, DocumentName: &ref.Name}

	w := srv.do(http.MethodGet, "/api/v1/onboarding/items/item-1/document", bearer(t, "emp-1", models.RoleEmployee), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data dto.DocumentLink `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	w = srv.do(http.MethodGet, body.Data.URL, "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4\n%%EOF\n", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), filepath.Ext(ref.URL))

	w = srv.do(http.MethodGet, "/api/v1/onboarding/documents/download?token=bogus", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = srv.do(http.MethodGet, "/api/v1/onboarding/documents/download", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportAndTemplateEndpoints(t *testing.T) {
	srv := newTestServer(t)
	hr := bearer(t, "hr-1", models.RoleHR)

	w := srv.do(http.MethodGet, "/api/v1/onboarding/checklists/export?format=csv", hr, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="overview.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", w.Body.String())

	w = srv.do(http.MethodGet, "/api/v1/onboarding/checklists/emp-1/export?format=docx", hr, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(http.MethodGet, "/api/v1/onboarding/templates?role=manager&department=engineering", hr, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"department":"engineering"`)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(http.MethodGet, "/metrics", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines_total")
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}
