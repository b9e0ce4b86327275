package http

import (
	"net/http"

	"github.com/viralforge/invoicing-accounts/internal/application"
	"github.com/viralforge/invoicing-accounts/internal/domain"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(r.Context(), w, "register", err)
		return
	}

	res, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "register", err)
		return
	}
	w.Header().Set("Location", "/user/get/"+res.Account.ID.String())
	writeSuccess(w, http.StatusCreated, "User created", res)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(r.Context(), w, "login", err)
		return
	}

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "login", err)
		return
	}
	if res.MFARequired {
		writeSuccess(w, http.StatusOK, "Verification code sent", res)
		return
	}
	writeSuccess(w, http.StatusOK, "Login Success", res)
}

func (h *Handler) verifyCode(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.VerifyCode(r.Context(), pathParam(r, "email"), pathParam(r, "code"))
	if err != nil {
		writeMappedError(r.Context(), w, "verify_code", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Login Success", res)
}

// refreshToken reports a missing or malformed header as a bad request,
// not as an authentication failure.
func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		writeMappedError(r.Context(), w, "refresh_token", domain.NewError(domain.ErrInvalidToken, "Refresh Token missing or invalid"))
		return
	}
	res, err := h.service.Refresh(r.Context(), raw)
	if err != nil {
		writeMappedError(r.Context(), w, "refresh_token", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Token refreshed", res)
}
