package httpx

import (
	"net/http"

	domainauth "github.com/target/projectdesk/internal/domain/auth"
	"github.com/target/projectdesk/internal/domain/model"
	"github.com/target/projectdesk/internal/service"
)

// AccountHandlers serves the authenticated account's settings.
type AccountHandlers struct {
	Svc       *service.AccountService
	Lifecycle *service.SessionLifecycle
	Errors    ErrorWriter
}

// Get returns the account settings.
// GET /api/account.
func (h *AccountHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	settings, err := h.Svc.GetSettings(r.Context(), id)
	if err != nil {
		h.Errors.Write(w, r, err, "get_failed")
		return
	}
	WriteJSON(w, http.StatusOK, settings)
}

type accountUpdateResponse struct {
	model.AccountSettings
	Reauthenticate bool `json:"reauthenticate,omitempty"`
}

// Update changes name, email or password. An email change ends the session,
// since the identity may only change through login.
// PUT /api/account.
func (h *AccountHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req model.UpdateAccountRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Svc.UpdateSettings(r.Context(), id, req)
	if err != nil {
		h.Errors.Write(w, r, err, "update_failed")
		return
	}

	if res.EmailChanged {
		sess, _ := SessionFromContext(r.Context())
		if err := h.Lifecycle.Logout(r.Context(), sess); err != nil {
			h.Errors.Write(w, r, err, "logout_failed")
			return
		}
	}
	WriteJSON(w, http.StatusOK, accountUpdateResponse{AccountSettings: res.Settings, Reauthenticate: res.EmailChanged})
}

func (h *AccountHandlers) identity(w http.ResponseWriter, r *http.Request) (domainauth.Identity, bool) {
	return identityOrReject(w, r, h.Errors)
}

// identityOrReject returns the admitted identity, answering 401 itself when the route skipped RequireIdentity.
func identityOrReject(w http.ResponseWriter, r *http.Request, ew ErrorWriter) (domainauth.Identity, bool) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		ew.Write(w, r, domainauth.ErrUnauthenticated, "authentication_required")
	}
	return id, ok
}
