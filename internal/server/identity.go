package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"tailscale.com/client/tailscale/apitype"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	userInfoKey
)

// UserInfo is the identity of the player behind a request.
type UserInfo struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

var devUser = UserInfo{Login: "local", DisplayName: "Local Dev User"}

// WhoIsClient resolves a tailnet peer address to its owner. Satisfied by the
// tsnet local client.
type WhoIsClient interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

// UserStore maps a login to a stable user ID.
type UserStore interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
}

func withIdentity(r *http.Request, id int, info UserInfo) *http.Request {
	ctx := context.WithValue(r.Context(), userIDKey, id)
	ctx = context.WithValue(ctx, userInfoKey, info)
	return r.WithContext(ctx)
}

// DevIdentity attributes every request to user 1, for running without Tailscale.
func DevIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, withIdentity(r, 1, devUser))
	})
}

// StoredDevIdentity is DevIdentity for servers with a user store: the dev
// player is resolved through GetOrCreateUser so its missions reference a real
// users row. The ID is looked up once and then reused.
func StoredDevIdentity(users UserStore, log *slog.Logger) func(http.Handler) http.Handler {
	var (
		mu sync.Mutex
		id int
	)
	resolve := func(ctx context.Context) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		if id > 0 {
			return id, nil
		}
		got, err := users.GetOrCreateUser(ctx, devUser.Login, devUser.DisplayName)
		if err != nil {
			return 0, err
		}
		id = got
		return id, nil
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, err := resolve(r.Context())
			if err != nil {
				log.Error("resolving dev user", "error", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "user lookup failed"})
				return
			}
			next.ServeHTTP(w, withIdentity(r, uid, devUser))
		})
	}
}

// TailscaleIdentity resolves the caller with WhoIs and maps the login to a
// user ID. users may be nil, in which case every tailnet user is user 1.
func TailscaleIdentity(whois WhoIsClient, users UserStore, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who, err := whois.WhoIs(r.Context(), r.RemoteAddr)
			if err != nil || who == nil || who.UserProfile == nil {
				log.Warn("whois failed", "remote", r.RemoteAddr, "error", err)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unknown tailnet peer"})
				return
			}
			info := UserInfo{Login: who.UserProfile.LoginName, DisplayName: who.UserProfile.DisplayName}

			id := 1
			if users != nil {
				id, err = users.GetOrCreateUser(r.Context(), info.Login, info.DisplayName)
				if err != nil {
					log.Error("resolving user", "login", info.Login, "error", err)
					writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "user lookup failed"})
					return
				}
			}
			next.ServeHTTP(w, withIdentity(r, id, info))
		})
	}
}

// userIDFromContext returns the user ID set by the identity middleware, or 1.
func userIDFromContext(r *http.Request) int {
	if id, ok := r.Context().Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

func userInfoFromContext(r *http.Request) UserInfo {
	if info, ok := r.Context().Value(userInfoKey).(UserInfo); ok {
		return info
	}
	return devUser
}

// mustUserID returns the caller's user ID, writing 401 when it is not valid.
func mustUserID(w http.ResponseWriter, r *http.Request) (int, bool) {
	uid := userIDFromContext(r)
	if uid <= 0 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no user identity"})
		return 0, false
	}
	return uid, true
}
