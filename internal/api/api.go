// Package api 提供指标上报与运维操作的HTTP接口
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/han-fei/hostguard/internal/alerting"
	"github.com/han-fei/hostguard/internal/analysis"
	"github.com/han-fei/hostguard/internal/broadcast"
	"github.com/han-fei/hostguard/internal/models"
	"github.com/han-fei/hostguard/internal/recovery"
	"github.com/han-fei/hostguard/internal/storage"
)

// Handler API处理器
type Handler struct {
	analyzer *analysis.Analyzer
	dedup    *alerting.Deduplicator
	health   storage.ServiceHealthStore
	engine   *recovery.Engine
	hub      *broadcast.Hub
}

// NewHandler 创建API处理器
func NewHandler(analyzer *analysis.Analyzer, dedup *alerting.Deduplicator, health storage.ServiceHealthStore, engine *recovery.Engine, hub *broadcast.Hub) *Handler {
	return &Handler{
		analyzer: analyzer,
		dedup:    dedup,
		health:   health,
		engine:   engine,
		hub:      hub,
	}
}

// RegisterRoutes 注册API路由
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// 指标上报
	r.HandleFunc("/api/v1/metrics/ingest", h.handleIngest).Methods(http.MethodPost)

	// 服务健康上报与恢复操作
	r.HandleFunc("/api/v1/services/health", h.handleServiceHealth).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/services/{device_id}/{service_name}/reset", h.handleResetAttempts).Methods(http.MethodPost)

	// 告警压制
	r.HandleFunc("/api/v1/alerts/{alert_id}/suppress", h.handleSuppress).Methods(http.MethodPost)

	// 实时广播
	if h.hub != nil {
		r.HandleFunc("/ws", h.hub.HandleWebSocket)
	}

	// 健康检查
	r.HandleFunc("/healthz", h.handleHealthz).Methods(http.MethodGet)
}

// handleIngest 接收一条指标样本并同步完成分析
func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var sample models.MetricSample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		writeError(w, http.StatusBadRequest, "invalid metric sample: "+err.Error())
		return
	}
	if sample.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id is required")
		return
	}
	if sample.CollectedAt.IsZero() {
		sample.CollectedAt = time.Now().UTC()
	}

	result, err := h.analyzer.ProcessSample(r.Context(), &sample)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "analysis failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"anomaly_score":    result.AnomalyScore,
		"is_anomalous":     result.IsAnomalous,
		"anomaly_features": result.AnomalyFeatures,
		"alerts_created":   len(result.Alerts),
	})
}

// handleServiceHealth 健康检查采集端写入服务健康记录
func (h *Handler) handleServiceHealth(w http.ResponseWriter, r *http.Request) {
	var record models.ServiceHealth
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "invalid service health record: "+err.Error())
		return
	}
	if record.DeviceID == "" || record.ServiceName == "" {
		writeError(w, http.StatusBadRequest, "device_id and service_name are required")
		return
	}
	if record.LastCheckedAt.IsZero() {
		record.LastCheckedAt = time.Now().UTC()
	}

	if err := h.health.UpsertServiceHealth(r.Context(), &record); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist record: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleResetAttempts 人工处理后重置恢复尝试计数
func (h *Handler) handleResetAttempts(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := models.ServiceKey{
		DeviceID:    vars["device_id"],
		ServiceName: vars["service_name"],
	}
	h.engine.ResetAttempts(key)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type suppressRequest struct {
	DurationMinutes int `json:"duration_minutes"`
}

// handleSuppress 对单条告警设置限时压制
func (h *Handler) handleSuppress(w http.ResponseWriter, r *http.Request) {
	alertID := mux.Vars(r)["alert_id"]

	req := suppressRequest{DurationMinutes: 60}
	if r.Body != nil {
		// 无请求体时使用默认时长
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.DurationMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "duration_minutes must be positive")
		return
	}

	ttl := time.Duration(req.DurationMinutes) * time.Minute
	if err := h.dedup.Suppress(r.Context(), alertID, ttl); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to suppress alert: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "suppressed",
		"alert_id":         alertID,
		"duration_minutes": req.DurationMinutes,
	})
}

// handleHealthz 进程健康检查
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
