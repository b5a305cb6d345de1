package http

import (
	"context"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/dkeye/roomrelay/internal/adapters/signal"
	"github.com/dkeye/roomrelay/internal/app/orch"
	"github.com/dkeye/roomrelay/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "ct"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware keeps a stable per-browser token in the cookie session.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			sess.Set(clientTokenKey, token)
			// Saved before the handler runs: a websocket upgrade hijacks the
			// response and no header can be written afterwards.
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save client session")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

// originChecker accepts requests without an Origin header. An empty allowlist
// or a "*" entry accepts every origin.
func originChecker(allowed []string) func(r *nethttp.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if strings.TrimSpace(o) == "*" {
			return func(*nethttp.Request) bool { return true }
		}
		n, ok := normalizeOrigin(o)
		if !ok {
			log.Warn().Str("module", "adapters.http").Str("origin", o).Msg("ignoring invalid allowed origin")
			continue
		}
		set[n] = struct{}{}
	}
	if len(set) == 0 {
		return func(*nethttp.Request) bool { return true }
	}
	return func(r *nethttp.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		n, ok := normalizeOrigin(origin)
		if ok {
			_, ok = set[n]
		}
		if !ok {
			log.Warn().Str("module", "adapters.http").Str("origin", origin).Msg("origin rejected")
		}
		return ok
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: nethttp.SameSiteLaxMode})
	r.Use(sessions.Sessions("RoomRelaySessions", store))
	r.Use(ClientTokenMiddleware())

	ctrl := signal.NewSignalWSController(o,
		signal.NewRateLimiter(cfg.RateLimit.EventsPerSecond, cfg.RateLimit.Burst),
		signal.Options{
			SendBuffer:   cfg.SendBuffer,
			ReadLimit:    cfg.ReadLimit,
			PingPeriod:   cfg.PingPeriod,
			PongWait:     cfg.PongWait,
			WriteWait:    cfg.WriteWait,
			StoreTimeout: cfg.Store.Timeout,
			CheckOrigin:  originChecker(cfg.AllowedOrigins),
		})
	h := &handlers{orch: o, cfg: cfg}

	r.GET("/healthz", h.health)

	api := r.Group("/api")
	api.GET("/rooms", h.listRooms)
	api.POST("/rooms", h.createRoom)
	api.GET("/rooms/:name", h.getRoom)
	api.DELETE("/rooms/:name", h.evictRoom)
	api.GET("/rooms/:name/members", h.roomMembers)
	api.DELETE("/rooms/:name/members/:id", h.kickMember)
	api.GET("/rooms/:name/messages", h.roomMessages)
	api.GET("/ice-servers", h.iceServers)

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Strs("allowed_origins", cfg.AllowedOrigins).Msg("router setup")
	return r
}
