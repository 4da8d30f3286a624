package auth

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-account-service/internal/api"
)

type AuthHandler struct {
	service AuthService
	logger  *slog.Logger
}

func NewAuthHandler(service AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		service: service,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, api.NewError(api.ErrValidation, err.Error()))
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, api.NewError(api.ErrValidation, err.Error()))
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Logout(r.Context())
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.RevokeToken(r.Context())
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, r, api.NewError(api.ErrUnauthenticated, "Missing access token"))
		return
	}

	user, err := h.service.Me(r.Context(), userID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, api.NewError(api.ErrValidation, err.Error()))
		return
	}

	resp, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, api.NewError(api.ErrValidation, err.Error()))
		return
	}

	resp, err := h.service.ForgotPassword(r.Context(), req)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, api.NewError(api.ErrValidation, err.Error()))
		return
	}

	resp, err := h.service.ResetPassword(r.Context(), req)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, r, api.NewError(api.ErrUnauthenticated, "Missing access token"))
		return
	}

	var req ChangePasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, api.NewError(api.ErrValidation, err.Error()))
		return
	}

	resp, err := h.service.ChangePassword(r.Context(), userID, req)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, api.NewError(api.ErrValidation, err.Error()))
		return
	}

	resp, err := h.service.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, api.NewError(api.ErrValidation, err.Error()))
		return
	}

	resp, err := h.service.ResendVerification(r.Context(), req)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *AuthHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActiveStatus(w, r, true)
}

func (h *AuthHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActiveStatus(w, r, false)
}

func (h *AuthHandler) setActiveStatus(w http.ResponseWriter, r *http.Request, active bool) {
	if _, ok := GetUserIDFromContext(r.Context()); !ok {
		api.HandleError(w, r, api.NewError(api.ErrUnauthenticated, "Missing access token"))
		return
	}

	var req UserActivationRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, api.NewError(api.ErrValidation, err.Error()))
		return
	}
	if req.UserID == uuid.Nil {
		api.HandleError(w, r, api.NewValidationError("User id is required", map[string]any{"userId": "required"}))
		return
	}

	user, err := h.service.SetUserActiveStatus(r.Context(), req.UserID, active)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, r, api.NewError(api.ErrUnauthenticated, "Missing access token"))
		return
	}

	resp, err := h.service.DeleteAccount(r.Context(), userID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *AuthHandler) SoftDeleteUser(w http.ResponseWriter, r *http.Request) {
	callerEmail, ok := GetUserEmailFromContext(r.Context())
	if !ok {
		api.HandleError(w, r, api.NewError(api.ErrUnauthenticated, "Missing access token"))
		return
	}

	var req SoftDeleteUserRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.HandleError(w, r, api.NewError(api.ErrValidation, err.Error()))
		return
	}

	resp, err := h.service.SoftDeleteUser(r.Context(), callerEmail, req)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
