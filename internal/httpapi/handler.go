package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"patientportal/queue-service/internal/apperr"
	"patientportal/queue-service/internal/models"
	"patientportal/queue-service/internal/queue"
)

// QueueService is the operations surface the handlers invoke. The caller
// identity comes from the identity middleware, never from the payload.
type QueueService interface {
	CheckIn(ctx context.Context, userID string, input queue.CheckInInput) (models.TicketResponse, error)
	GetStatus(ctx context.Context, userID string, input queue.StatusQueryInput) (models.TicketResponse, error)
	ReissueTicket(ctx context.Context, userID string, input queue.ReissueTicketInput) (models.TicketResponse, error)
	AdminAdvanceQueue(ctx context.Context, adminUserID string, input queue.AdminAdvanceInput) (models.AdminAdvanceResponse, error)
}

type Handler struct {
	service QueueService
}

func NewHandler(service QueueService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/queue/check-in", h.handleCheckIn)
	mux.HandleFunc("/api/queue/status", h.handleStatus)
	mux.HandleFunc("/api/queue/reissue", h.handleReissue)
	mux.HandleFunc("/api/queue/advance", h.handleAdvance)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type checkInRequest struct {
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	NationalID  string `json:"national_id"`
	QueueType   string `json:"queue_type"`
	VisitDate   string `json:"visit_date"`
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing caller identity", nil)
		return
	}

	var req checkInRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Dữ liệu gửi lên không hợp lệ (JSON).", nil)
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.NationalID = strings.TrimSpace(req.NationalID)
	req.QueueType = strings.TrimSpace(req.QueueType)
	req.VisitDate = strings.TrimSpace(req.VisitDate)

	if req.FullName == "" {
		writeError(w, http.StatusBadRequest, "FULL_NAME_REQUIRED", "Bạn vui lòng cung cấp họ tên.", nil)
		return
	}
	if req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "PHONE_NUMBER_REQUIRED", "Bạn vui lòng cung cấp số điện thoại.", nil)
		return
	}
	if req.NationalID == "" {
		writeError(w, http.StatusBadRequest, "NATIONAL_ID_REQUIRED", "Bạn vui lòng cung cấp CCCD/CMND.", nil)
		return
	}
	queueType, err := parseQueueType(req.QueueType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "QUEUE_TYPE_REQUIRED", "Bạn vui lòng chọn loại khám (BHYT hoặc Dịch vụ).", nil)
		return
	}
	if !validVisitDate(req.VisitDate) {
		writeError(w, http.StatusBadRequest, "INVALID_VISIT_DATE", "Ngày khám không hợp lệ (YYYY-MM-DD).", nil)
		return
	}

	result, err := h.service.CheckIn(r.Context(), userID.UserID, queue.CheckInInput{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		NationalID:  req.NationalID,
		QueueType:   queueType,
		VisitDate:   req.VisitDate,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing caller identity", nil)
		return
	}

	queueType, err := parseQueueType(strings.TrimSpace(r.URL.Query().Get("queue_type")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "QUEUE_TYPE_REQUIRED", "Bạn vui lòng chọn loại khám (BHYT hoặc Dịch vụ).", nil)
		return
	}
	visitDate := strings.TrimSpace(r.URL.Query().Get("visit_date"))
	if !validVisitDate(visitDate) {
		writeError(w, http.StatusBadRequest, "INVALID_VISIT_DATE", "Ngày khám không hợp lệ (YYYY-MM-DD).", nil)
		return
	}

	result, err := h.service.GetStatus(r.Context(), userID.UserID, queue.StatusQueryInput{
		QueueType: queueType,
		VisitDate: visitDate,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

type reissueRequest struct {
	QueueType string `json:"queue_type"`
	VisitDate string `json:"visit_date"`
}

func (h *Handler) handleReissue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing caller identity", nil)
		return
	}

	var req reissueRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Dữ liệu gửi lên không hợp lệ (JSON).", nil)
		return
	}

	queueType, err := parseQueueType(strings.TrimSpace(req.QueueType))
	if err != nil {
		writeError(w, http.StatusBadRequest, "QUEUE_TYPE_REQUIRED", "Bạn vui lòng chọn loại khám (BHYT hoặc Dịch vụ).", nil)
		return
	}
	req.VisitDate = strings.TrimSpace(req.VisitDate)
	if !validVisitDate(req.VisitDate) {
		writeError(w, http.StatusBadRequest, "INVALID_VISIT_DATE", "Ngày khám không hợp lệ (YYYY-MM-DD).", nil)
		return
	}

	result, err := h.service.ReissueTicket(r.Context(), userID.UserID, queue.ReissueTicketInput{
		QueueType: queueType,
		VisitDate: req.VisitDate,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

type advanceRequest struct {
	QueueType string `json:"queue_type"`
	VisitDate string `json:"visit_date"`
	Step      *int   `json:"step"`
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing caller identity", nil)
		return
	}
	if identity.Role != RoleAdmin {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "admin role required", nil)
		return
	}

	var req advanceRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Dữ liệu gửi lên không hợp lệ (JSON).", nil)
		return
	}

	queueType, err := parseQueueType(strings.TrimSpace(req.QueueType))
	if err != nil {
		writeError(w, http.StatusBadRequest, "QUEUE_TYPE_REQUIRED", "Bạn vui lòng chọn loại khám (BHYT hoặc Dịch vụ).", nil)
		return
	}
	req.VisitDate = strings.TrimSpace(req.VisitDate)
	if !validVisitDate(req.VisitDate) {
		writeError(w, http.StatusBadRequest, "INVALID_VISIT_DATE", "Ngày khám không hợp lệ (YYYY-MM-DD).", nil)
		return
	}

	step := 1
	if req.Step != nil {
		step = *req.Step
	}

	result, err := h.service.AdminAdvanceQueue(r.Context(), identity.UserID, queue.AdminAdvanceInput{
		QueueType: queueType,
		VisitDate: req.VisitDate,
		Step:      step,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

var errInvalidQueueType = errors.New("invalid queue type")

func parseQueueType(value string) (models.QueueType, error) {
	queueType := models.QueueType(value)
	if !queueType.Valid() {
		return "", errInvalidQueueType
	}
	return queueType, nil
}

func validVisitDate(value string) bool {
	if value == "" {
		return true
	}
	_, err := time.Parse("2006-01-02", value)
	return err == nil
}

type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorResponse struct {
	Success bool          `json:"success"`
	Error   responseError `json:"error"`
}

type responseError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeAppError(w http.ResponseWriter, err error) {
	if appErr := apperr.From(err); appErr != nil {
		writeError(w, appErr.Status, string(appErr.Code), appErr.Message, appErr.Details)
		return
	}
	writeError(w, http.StatusInternalServerError, string(apperr.CodeInternalError), "Có lỗi hệ thống. Bạn vui lòng thử lại sau.", nil)
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, errorResponse{
		Error: responseError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successResponse{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
