package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth         *service.AuthService
	Members      *service.MemberService
	CookieDomain string
	SSORedirect  string
	Logger       *slog.Logger
}

// NewRouter creates and configures the portal's HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	var authHandlers *AuthHandlers
	if services.Auth != nil {
		authHandlers = &AuthHandlers{
			Svc:          services.Auth,
			CookieDomain: services.CookieDomain,
			SSORedirect:  services.SSORedirect,
			Logger:       services.Logger,
		}
	}
	memberHandlers := &MemberHandlers{Svc: services.Members}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	if authHandlers != nil {
		registerAuthRoutes(mux, authHandlers)
		registerMemberRoutes(mux, memberHandlers, services.Auth)
	}

	return mux
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /auth/signin", h.SignIn)
	mux.HandleFunc("POST /auth/signup", h.SignUp)
	mux.HandleFunc("POST /auth/signout", h.SignOut)
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("GET /auth/sso/login", h.SSOLogin)
	mux.HandleFunc("GET /auth/sso/callback", h.SSOCallback)
}

func registerMemberRoutes(mux *http.ServeMux, h *MemberHandlers, auth AuthServiceInterface) {
	memberOnly := RequireLevel(auth, domainauth.LevelMember)
	coreOnly := RequireLevel(auth, domainauth.LevelCore)
	adminOnly := RequireLevel(auth, domainauth.LevelAdmin)

	mux.Handle("GET /api/me", memberOnly(http.HandlerFunc(h.Me)))

	mux.Handle("GET /api/members", coreOnly(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/members/{id}", coreOnly(http.HandlerFunc(h.Get)))
	mux.Handle("PUT /api/members/{id}/role", coreOnly(http.HandlerFunc(h.SetRole)))
	mux.Handle("POST /api/members/{id}/xp", coreOnly(http.HandlerFunc(h.AwardXP)))
	mux.Handle("DELETE /api/members/{id}", adminOnly(http.HandlerFunc(h.Delete)))
}
