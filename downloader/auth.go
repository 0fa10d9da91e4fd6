package downloader

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"dyfetch/internal"
)

// CookieAuthProvider implements the AuthProvider interface. It loads
// douyin credentials from a cookie file, accepting either the Netscape
// export format or a raw "k=v; k2=v2" header string.
type CookieAuthProvider struct {
	cookieStore map[string]*http.Cookie
	mutex       sync.RWMutex
}

// NewCookieAuthProvider creates a new instance of CookieAuthProvider
func NewCookieAuthProvider() *CookieAuthProvider {
	return &CookieAuthProvider{
		cookieStore: make(map[string]*http.Cookie),
	}
}

// LoadCookies loads cookies from path and builds an AuthContext
func (a *CookieAuthProvider) LoadCookies(path string) (*internal.AuthContext, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer file.Close()

	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.clearCookies()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Lines without tabs are treated as a pasted Cookie header
		if !strings.Contains(line, "\t") {
			for _, cookie := range parseCookieString(line) {
				a.cookieStore[cookie.Name] = cookie
			}
			continue
		}

		cookie, err := a.parseNetscapeCookieLine(line)
		if err != nil {
			return nil, fmt.Errorf("invalid cookie format at line %d: %w", lineNum, err)
		}
		a.cookieStore[cookie.Name] = cookie
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading cookie file: %w", err)
	}

	return a.buildAuthContext(), nil
}

// LoadCookieString builds an AuthContext from a raw "k=v; k2=v2"
// cookie string, for the --cookies flag and DYFETCH_COOKIES
func (a *CookieAuthProvider) LoadCookieString(raw string) (*internal.AuthContext, error) {
	cookies := parseCookieString(raw)
	if len(cookies) == 0 {
		return nil, fmt.Errorf("no cookies found in cookie string")
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.clearCookies()
	for _, cookie := range cookies {
		a.cookieStore[cookie.Name] = cookie
	}

	return a.buildAuthContext(), nil
}

// buildAuthContext snapshots the stored cookies into an AuthContext.
// Caller holds the mutex.
func (a *CookieAuthProvider) buildAuthContext() *internal.AuthContext {
	authContext := &internal.AuthContext{
		Cookies: make(map[string]*http.Cookie, len(a.cookieStore)),
	}

	for name, cookie := range a.cookieStore {
		authContext.Cookies[name] = cookie

		switch name {
		case "msToken":
			authContext.MsToken = cookie.Value
		case "ttwid":
			authContext.Ttwid = cookie.Value
		}
	}

	if ttwid, exists := authContext.Cookies["ttwid"]; exists && !ttwid.Expires.IsZero() {
		authContext.ExpiresAt = ttwid.Expires
	} else {
		authContext.ExpiresAt = time.Now().Add(24 * time.Hour)
	}

	return authContext
}

// parseCookieString splits a "k=v; k2=v2" string into cookies
func parseCookieString(raw string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.Index(part, "=")
		if eq <= 0 {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:  part[:eq],
			Value: part[eq+1:],
		})
	}
	return cookies
}

// parseNetscapeCookieLine parses a single line from Netscape cookie format
// Format: domain	flag	path	secure	expiration	name	value
func (a *CookieAuthProvider) parseNetscapeCookieLine(line string) (*http.Cookie, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return nil, fmt.Errorf("expected 7 fields, got %d", len(fields))
	}

	domain := fields[0]
	path := fields[2]
	secureStr := fields[3]
	expirationStr := fields[4]
	name := fields[5]
	value := fields[6]

	secure := secureStr == "TRUE"

	var expires time.Time
	if expirationStr != "0" {
		timestamp, err := strconv.ParseInt(expirationStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid expiration timestamp: %w", err)
		}
		expires = time.Unix(timestamp, 0)
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   domain,
		Path:     path,
		Expires:  expires,
		Secure:   secure,
		HttpOnly: true,
	}, nil
}

// ValidateSession checks that the credential set carries the cookies
// the web API needs. msToken and ttwid gate the listing endpoints;
// sessionid is only needed for the favorite listing.
func (a *CookieAuthProvider) ValidateSession(auth *internal.AuthContext) error {
	if auth == nil {
		return fmt.Errorf("auth context is nil")
	}

	if auth.MsToken == "" {
		return fmt.Errorf("msToken cookie is required, export fresh cookies from a logged-in browser session")
	}

	// msToken values from a real session are long opaque strings
	if len(auth.MsToken) < 32 {
		return fmt.Errorf("msToken cookie appears to be invalid (too short)")
	}

	if auth.Ttwid == "" {
		return fmt.Errorf("ttwid cookie is required for authentication")
	}

	if !auth.ExpiresAt.IsZero() && time.Now().After(auth.ExpiresAt) {
		return fmt.Errorf("session has expired at %v", auth.ExpiresAt)
	}

	return nil
}

// HasSessionCookie reports whether the credential set includes a login
// session, which the favorite (like) listing requires
func (a *CookieAuthProvider) HasSessionCookie(auth *internal.AuthContext) bool {
	if auth == nil {
		return false
	}
	for _, name := range []string{"sessionid", "sessionid_ss", "sid_guard"} {
		if c, ok := auth.Cookies[name]; ok && c.Value != "" {
			return true
		}
	}
	return false
}

// clearCookies securely clears all stored cookies from memory
func (a *CookieAuthProvider) clearCookies() {
	for name := range a.cookieStore {
		if cookie := a.cookieStore[name]; cookie != nil {
			cookie.Value = ""
		}
		delete(a.cookieStore, name)
	}
}

// Cleanup securely clears all sensitive data from memory
func (a *CookieAuthProvider) Cleanup() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.clearCookies()
}
