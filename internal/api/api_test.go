package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/han-fei/hostguard/internal/alerting"
	"github.com/han-fei/hostguard/internal/analysis"
	"github.com/han-fei/hostguard/internal/config"
	"github.com/han-fei/hostguard/internal/models"
	"github.com/han-fei/hostguard/internal/recovery"
	"github.com/han-fei/hostguard/internal/storage"
)

func newTestRouter(t *testing.T) (*mux.Router, *storage.MemoryStorage) {
	t.Helper()

	cfg := &config.Config{}
	config.SetDefaults(cfg)
	cfg.Analysis.ModelDir = t.TempDir()

	store := storage.NewMemoryStorage()
	factory := alerting.NewFactory(store, nil, nil)
	scorer := analysis.NewScorer(cfg.Analysis)
	analyzer := analysis.NewAnalyzer(cfg.Analysis, scorer, factory, store)
	dedup := alerting.NewDeduplicator(store, cfg.Alerting.DedupWindow.Std())
	engine := recovery.NewEngine(cfg.Recovery, store, store, factory, recovery.NewShellExecutor())

	router := mux.NewRouter()
	NewHandler(analyzer, dedup, store, engine, nil).RegisterRoutes(router)
	return router, store
}

// TestIngestCreatesThresholdAlert 测试样本上报触发阈值告警
func TestIngestCreatesThresholdAlert(t *testing.T) {
	router, store := newTestRouter(t)

	sample := models.MetricSample{
		DeviceID:        "dev-1",
		CPUUsagePercent: models.Float64(97.0),
	}
	body, _ := json.Marshal(sample)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/metrics/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		AlertsCreated int  `json:"alerts_created"`
		IsAnomalous   bool `json:"is_anomalous"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.AlertsCreated != 1 {
		t.Errorf("Expected 1 alert created, got %d", resp.AlertsCreated)
	}

	alerts := store.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("Expected 1 persisted alert, got %d", len(alerts))
	}
	if alerts[0].Type != models.AlertTypeCPUHigh {
		t.Errorf("Expected cpu_high alert, got %s", alerts[0].Type)
	}
	if alerts[0].Severity != models.SeverityCritical {
		t.Errorf("Expected critical severity, got %s", alerts[0].Severity)
	}
}

// TestIngestRejectsMissingDeviceID 测试缺失device_id的样本被拒绝
func TestIngestRejectsMissingDeviceID(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/metrics/ingest", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

// TestIngestRejectsMalformedBody 测试非法JSON返回400
func TestIngestRejectsMalformedBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/metrics/ingest", bytes.NewReader([]byte(`{not json`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

// TestServiceHealthUpsert 测试服务健康记录写入
func TestServiceHealthUpsert(t *testing.T) {
	router, store := newTestRouter(t)

	record := models.ServiceHealth{
		DeviceID:    "dev-1",
		ServiceName: "nginx",
		Status:      models.ServiceStateStopped,
	}
	body, _ := json.Marshal(record)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/services/health", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	stored, err := store.GetServiceHealth(req.Context(), models.ServiceKey{DeviceID: "dev-1", ServiceName: "nginx"})
	if err != nil {
		t.Fatalf("Failed to read back record: %v", err)
	}
	if stored.Status != models.ServiceStateStopped {
		t.Errorf("Expected stopped status, got %s", stored.Status)
	}
	if stored.LastCheckedAt.IsZero() {
		t.Error("Expected last_checked_at to be defaulted")
	}
}

// TestSuppressAlert 测试告警压制接口
func TestSuppressAlert(t *testing.T) {
	router, store := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/alert-123/suppress",
		bytes.NewReader([]byte(`{"duration_minutes": 30}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	exists, err := store.Exists(req.Context(), "alert:suppressed:alert-123")
	if err != nil {
		t.Fatalf("Failed to check suppression marker: %v", err)
	}
	if !exists {
		t.Error("Expected suppression marker to be set")
	}
}

// TestSuppressRejectsNonPositiveDuration 测试非正时长被拒绝
func TestSuppressRejectsNonPositiveDuration(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/alert-123/suppress",
		bytes.NewReader([]byte(`{"duration_minutes": -5}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

// TestHealthz 测试进程健康检查
func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}
