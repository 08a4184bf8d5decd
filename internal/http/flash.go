package http

import (
	"net/http"
	"net/url"
	"strings"
)

const flashCookie = "smartexpense_flash"

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    NotificationType
	Message string
}

func setFlash(w http.ResponseWriter, kind NotificationType, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(string(kind) + ":" + message),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads the pending flash, if any, and expires the cookie.
func popFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	kind, message, ok := strings.Cut(raw, ":")
	if !ok || message == "" {
		return nil
	}
	switch NotificationType(kind) {
	case NotificationSuccess, NotificationError, NotificationWarning, NotificationInfo:
	default:
		kind = string(NotificationInfo)
	}
	return &Flash{Kind: NotificationType(kind), Message: message}
}
