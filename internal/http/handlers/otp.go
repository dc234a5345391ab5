package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/pawmart/internal/http/respond"
	"github.com/hongminglow/pawmart/internal/models/dto"
	"github.com/hongminglow/pawmart/internal/otp"
)

// OTPHandler issues and checks one-time codes. Whether the address belongs
// to an account is never revealed.
type OTPHandler struct {
	codes  *otp.Service
	logger *zap.Logger
}

func NewOTPHandler(codes *otp.Service, logger *zap.Logger) *OTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTPHandler{codes: codes, logger: logger}
}

func (h *OTPHandler) Register(public chi.Router) {
	public.Post("/api/otp/request", h.handleRequest)
	public.Post("/api/otp/verify", h.handleVerify)
}

func (h *OTPHandler) handleRequest(w http.ResponseWriter, r *http.Request) {
	var req dto.OTPRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		respond.Error(w, http.StatusBadRequest, "email is required")
		return
	}
	if err := h.codes.Request(r.Context(), req.Email); err != nil {
		h.logger.Error("issue one-time code", zap.Error(err))
		respond.Error(w, http.StatusServiceUnavailable, "could not send code")
		return
	}
	respond.JSON(w, http.StatusOK, "code sent", nil)
}

func (h *OTPHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req dto.OTPVerifyRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Code) == "" {
		respond.Error(w, http.StatusBadRequest, "email and code are required")
		return
	}
	ok, err := h.codes.Verify(r.Context(), req.Email, req.Code)
	if err != nil {
		h.logger.Error("verify one-time code", zap.Error(err))
		respond.Error(w, http.StatusServiceUnavailable, "could not verify code")
		return
	}
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid or expired code")
		return
	}
	respond.JSON(w, http.StatusOK, "code verified", nil)
}
