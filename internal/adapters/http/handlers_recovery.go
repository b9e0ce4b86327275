package http

import (
	"net/http"

	"github.com/viralforge/invoicing-accounts/internal/application"
)

func (h *Handler) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RequestPasswordReset(r.Context(), pathParam(r, "email")); err != nil {
		writeMappedError(r.Context(), w, "request_password_reset", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Email sent. Please check your email to reset your password.", nil)
}

func (h *Handler) verifyPasswordLink(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.VerifyPasswordLink(r.Context(), pathParam(r, "key"))
	if err != nil {
		writeMappedError(r.Context(), w, "verify_password_link", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Please enter a new password", map[string]any{"user": account})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	err := h.service.ResetPassword(r.Context(), application.ResetPasswordRequest{
		Key:             pathParam(r, "key"),
		Password:        pathParam(r, "password"),
		ConfirmPassword: pathParam(r, "confirmPassword"),
	})
	if err != nil {
		writeMappedError(r.Context(), w, "reset_password", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Password reset successfully", nil)
}

func (h *Handler) verifyAccount(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.VerifyAccountLink(r.Context(), pathParam(r, "key"))
	if err != nil {
		writeMappedError(r.Context(), w, "verify_account", err)
		return
	}
	message := "Account verified"
	if res.AlreadyVerified {
		message = "Account already verified"
	}
	writeSuccess(w, http.StatusOK, message, res)
}
