package http

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/viralforge/invoicing-accounts/internal/domain"
)

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())
	account, err := h.service.Profile(r.Context(), principal)
	if err != nil {
		writeMappedError(r.Context(), w, "profile", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Profile Retrieved", map[string]any{"user": account})
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	raw := pathParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeMappedError(r.Context(), w, "get_account", domain.NewError(domain.ErrNotFound, "No user found by id "+raw))
		return
	}
	principal, _ := principalFromContext(r.Context())
	account, err := h.service.AccountByID(r.Context(), principal, id)
	if err != nil {
		writeMappedError(r.Context(), w, "get_account", err)
		return
	}
	writeSuccess(w, http.StatusOK, "User Retrieved", map[string]any{"user": account})
}
