package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/exprd/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

// AdminRouter builds the health/readiness/metrics router for this service.
func (s *Service) AdminRouter() *gin.Engine {
	node := s.cfg.ServerID
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, node))
	r.Use(observability.RequestMetricsMiddleware(node))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.startedAt).String(),
			"service": node,
			"version": version,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		st := s.Status()
		c.JSON(http.StatusOK, gin.H{
			"ready":          true,
			"service":        st.ServerID,
			"addr":           st.ListenAddr,
			"active_clients": st.ActiveClients,
			"total_clients":  st.TotalClients,
			"requests":       st.Requests,
			"uptime":         time.Since(st.StartedAt).String(),
			"version":        version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// serveAdmin runs the admin router on addr until ctx ends.
func (s *Service) serveAdmin(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.AdminRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("node", s.cfg.ServerID).Str("addr", ln.Addr().String()).Msg("server.admin listening")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
