package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/bankauth"
)

func (s *Server) cookie(name, value string, httpOnly bool, expires time.Time) *http.Cookie {
	path := s.cookies.Path
	if path == "" {
		path = "/"
	}
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   s.cookies.Domain,
		HttpOnly: httpOnly,
		Secure:   s.cookies.Secure,
		SameSite: s.cookies.SameSite,
	}
	if ttl := time.Until(expires); ttl > 0 {
		ck.Expires = expires.UTC()
		ck.MaxAge = int(ttl.Round(time.Second).Seconds())
	}
	return ck
}

func (s *Server) deletionCookie(name string, httpOnly bool) *http.Cookie {
	ck := s.cookie(name, "", httpOnly, time.Time{})
	ck.Expires = time.Unix(0, 0).UTC()
	ck.MaxAge = -1
	return ck
}

// setSessionCookies writes the access, refresh and CSRF cookies. The CSRF
// cookie is readable by scripts so the client can echo it in the header.
func (s *Server) setSessionCookies(w http.ResponseWriter, t *bankauth.SessionTokens) {
	http.SetCookie(w, s.cookie(s.cookies.AccessName, t.AccessToken, true, t.AccessExpiresAt))
	http.SetCookie(w, s.cookie(s.cookies.RefreshName, t.RefreshToken, true, t.RefreshExpiresAt))
	http.SetCookie(w, s.cookie(s.cookies.CSRFName, t.CSRFToken, false, t.RefreshExpiresAt))
}

func (s *Server) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, s.deletionCookie(s.cookies.AccessName, true))
	http.SetCookie(w, s.deletionCookie(s.cookies.RefreshName, true))
	http.SetCookie(w, s.deletionCookie(s.cookies.CSRFName, false))
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
