package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookieName = "basedoc_flash"

// Flash levels, used as CSS classes by the layout.
const (
	flashSuccess = "success"
	flashInfo    = "info"
	flashWarning = "warning"
	flashError   = "error"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// addFlash queues a message for the next page. Messages queued earlier in the
// same request are kept.
func (h *Handler) addFlash(w http.ResponseWriter, r *http.Request, level, message string) {
	flashes := append(pendingFlashes(r), Flash{Level: level, Message: message})

	raw, err := json.Marshal(flashes)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode flash")
		return
	}
	value := base64.RawURLEncoding.EncodeToString(raw)

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	// Later calls in this request see the queued messages.
	r.AddCookie(&http.Cookie{Name: flashCookieName, Value: value})
}

// popFlashes returns the queued messages and clears the cookie.
func (h *Handler) popFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	flashes := pendingFlashes(r)
	if len(flashes) == 0 {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	return flashes
}

func pendingFlashes(r *http.Request) []Flash {
	var value string
	// The last cookie wins when addFlash appended to the request.
	for _, c := range r.Cookies() {
		if c.Name == flashCookieName {
			value = c.Value
		}
	}
	if value == "" {
		return nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(raw, &flashes); err != nil {
		return nil
	}
	return flashes
}
