// Package apperr defines the typed failure taxonomy surfaced to callers.
// Every domain failure carries a stable code, an HTTP-style status, a
// user-facing message, and optional structured details.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeQueueClosedForToday      Code = "QUEUE_CLOSED_FOR_TODAY"
	CodeNoTicketFound            Code = "NO_TICKET_FOUND"
	CodeNoActiveTicketFound      Code = "NO_ACTIVE_TICKET_FOUND"
	CodeNoWaitingTicketToReissue Code = "NO_WAITING_TICKET_TO_REISSUE"
	CodeMaxReissueLimitReached   Code = "MAX_REISSUE_LIMIT_REACHED"
	CodeCannotReissueNearTurn    Code = "CANNOT_REISSUE_NEAR_YOUR_TURN"
	CodeQueueNotFound            Code = "QUEUE_NOT_FOUND"
	CodeInvalidStep              Code = "INVALID_STEP"
	CodeStepTooLarge             Code = "STEP_TOO_LARGE"
	CodeNoTicketsIssuedYet       Code = "NO_TICKETS_ISSUED_YET"
	CodeQueueAlreadyFinished     Code = "QUEUE_ALREADY_FINISHED"
	CodeInternalError            Code = "INTERNAL_ERROR"
)

// messages maps each code to the patient-facing text shown by the portal.
var messages = map[Code]string{
	CodeQueueClosedForToday:      "Hôm nay quầy đã đóng. Bạn vui lòng quay lại vào ngày mai nhé.",
	CodeNoTicketFound:            "Mình chưa tìm thấy số của bạn hôm nay. Bạn muốn check-in để lấy số không?",
	CodeNoActiveTicketFound:      "Bạn có số nhưng hiện không còn ở trạng thái chờ/gọi (có thể đã hoàn tất, bị lỡ hoặc bị hủy).",
	CodeNoWaitingTicketToReissue: "Bạn không có số đang chờ để cấp lại (chỉ cấp lại khi số đang ở trạng thái chờ).",
	CodeMaxReissueLimitReached:   "Bạn đã cấp lại số quá số lần cho phép trong hôm nay.",
	CodeCannotReissueNearTurn:    "Số của bạn đã gần đến lượt nên không thể cấp lại. Bạn vui lòng chờ gọi số nhé.",
	CodeQueueNotFound:            "Không tìm thấy hàng đợi tương ứng. Vui lòng thử lại hoặc đổi loại khám.",
	CodeInvalidStep:              "Bước nhảy không hợp lệ.",
	CodeStepTooLarge:             "Bước nhảy quá lớn. Vui lòng thử lại với số nhỏ hơn.",
	CodeNoTicketsIssuedYet:       "Hiện chưa phát số nào cho hàng đợi này.",
	CodeQueueAlreadyFinished:     "Hàng đợi hôm nay đã chạy đến số cuối cùng.",
	CodeInternalError:            "Có lỗi hệ thống. Bạn vui lòng thử lại sau.",
}

type AppError struct {
	Code    Code
	Message string
	Status  int
	Details map[string]any
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.cause)
	}
	return string(e.Code)
}

func (e *AppError) Unwrap() error { return e.cause }

// Fail builds an AppError for a known code with its canonical message.
func Fail(code Code, status int, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: messages[code],
		Status:  status,
		Details: details,
	}
}

// Internal wraps an unexpected store or infrastructure failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: messages[CodeInternalError],
		Status:  http.StatusInternalServerError,
		cause:   cause,
	}
}

// From extracts an *AppError from err, or nil if err is not one.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
