package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bioapp/auth-service/internal/application"
	"github.com/bioapp/auth-service/internal/domain"
	"github.com/bioapp/auth-service/internal/ports"
	"github.com/google/uuid"
)

type registerBody struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Age      int    `json:"age"`
	Password string `json:"password"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(r.Context(), w, "register", err)
		return
	}

	res, err := h.service.Register(r.Context(), application.RegisterRequest{
		Email:    body.Email,
		Name:     body.Name,
		Phone:    body.Phone,
		Age:      body.Age,
		Password: body.Password,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "register", err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]any{
		"user_id":       res.UserID,
		"email":         res.Email,
		"name":          res.Name,
		"registered_at": res.RegisteredAt,
	})
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := decodeBody(r, &body); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}

	req := application.LoginRequest{
		Email:     body.Email,
		Password:  body.Password,
		IPAddress: readIP(r),
		UserAgent: r.UserAgent(),
	}

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			w.Header().Set("Retry-After", strconv.Itoa(h.service.RetryAfter(req.IPAddress, ports.LimitClassAuth)))
		}
		writeMappedError(r.Context(), w, "login", err)
		return
	}

	setSessionCookie(w, r, res.SessionID, res.ExpiresAt)
	writeSuccess(w, http.StatusOK, map[string]any{
		"token":      res.Token,
		"session_id": res.SessionID,
		"user_id":    res.UserID,
		"email":      res.Email,
		"name":       res.Name,
		"role":       res.Role,
		"expires_at": res.ExpiresAt,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(r.Context(), w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials")
		return
	}
	if err := h.service.Logout(r.Context(), identity.SessionID); err != nil {
		writeMappedError(r.Context(), w, "logout", err)
		return
	}
	clearSessionCookie(w, r)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(r.Context(), w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"user_id":    identity.UserID,
		"email":      identity.Email,
		"role":       identity.Role,
		"session_id": identity.SessionID,
	})
}

func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(r.Context(), w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials")
		return
	}
	token, err := h.service.IssueCSRF(identity.SessionID)
	if err != nil {
		writeMappedError(r.Context(), w, "csrf_token", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"csrf_token": token})
}

func (h *Handler) listRegistrants(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(r.Context(), w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials")
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	page, err := h.service.ListRegistrants(r.Context(), identity, limit, offset)
	if err != nil {
		writeMappedError(r.Context(), w, "list_registrants", err)
		return
	}

	items := make([]map[string]any, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, map[string]any{
			"user_id":       item.UserID,
			"email":         item.Email,
			"name":          item.Name,
			"phone":         item.Phone,
			"age":           item.Age,
			"role":          item.Role,
			"is_active":     item.IsActive,
			"registered_at": item.RegisteredAt,
		})
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"registrants": items,
		"total":       page.Total,
		"limit":       page.Limit,
		"offset":      page.Offset,
	})
}

func (h *Handler) loginHistory(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(r.Context(), w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials")
		return
	}

	userID := identity.UserID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user_id")
			return
		}
		userID = parsed
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	attempts, err := h.service.LoginHistory(r.Context(), identity, userID, limit, offset)
	if err != nil {
		writeMappedError(r.Context(), w, "login_history", err)
		return
	}

	items := make([]map[string]any, 0, len(attempts))
	for _, a := range attempts {
		items = append(items, map[string]any{
			"attempt_at": a.AttemptAt,
			"ip_address": a.IPAddress,
			"status":     a.Status,
			"reason":     a.FailureReason,
			"user_agent": a.UserAgent,
		})
	}
	writeSuccess(w, http.StatusOK, map[string]any{"attempts": items})
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID.String(),
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
