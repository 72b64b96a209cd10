package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/attribution-cli/internal/config"
	"github.com/sells-group/attribution-cli/internal/engine"
	"github.com/sells-group/attribution-cli/internal/model"
	"github.com/sells-group/attribution-cli/internal/scheduler"
	"github.com/sells-group/attribution-cli/internal/store"
)

var servePort int

// workspaceRunner is the slice of the engine the webhook needs.
// *engine.Engine satisfies it.
type workspaceRunner interface {
	ProcessWorkspace(ctx context.Context, workspaceID string) (*model.BatchStats, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook server for attribution requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rs, err := initRules()
		if err != nil {
			return err
		}
		eng := engine.New(cfg, st, rs)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(ctx, st, eng, cfg.Server),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the HTTP surface. ctx bounds the background runs spawned
// by the webhook, which outlive their requests; st and runner may be nil, in
// which case the affected endpoints degrade instead of panicking.
func buildRouter(ctx context.Context, st store.Store, runner workspaceRunner, srvCfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	serial := scheduler.NewSerial()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if srvCfg.RateLimitRPS > 0 {
		burst := srvCfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(srvCfg.RateLimitRPS), burst)
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if !limiter.Allow() {
					http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
					return
				}
				next.ServeHTTP(w, req)
			})
		})
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status, code := "ok", http.StatusOK
		if st != nil {
			pingCtx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := st.Ping(pingCtx); err != nil {
				zap.L().Warn("health ping failed", zap.Error(err))
				status, code = "unavailable", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	r.Get("/coverage/{workspaceID}", func(w http.ResponseWriter, req *http.Request) {
		if st == nil {
			http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		ws := chi.URLParam(req, "workspaceID")
		report, err := st.CoverageCounts(req.Context(), ws)
		if err != nil {
			zap.L().Error("coverage lookup failed", zap.String("workspace", ws), zap.Error(err))
			http.Error(w, `{"error":"coverage lookup failed"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	})

	r.Group(func(r chi.Router) {
		if srvCfg.WebhookSecret != "" {
			r.Use(bearerAuth(srvCfg.WebhookSecret))
		}

		r.Post("/webhook/link", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				WorkspaceID string `json:"workspace_id"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if body.WorkspaceID == "" {
				http.Error(w, `{"error":"workspace_id is required"}`, http.StatusBadRequest)
				return
			}

			// Run attribution asynchronously; repeated requests for one
			// workspace queue up instead of racing.
			if runner != nil {
				serial.Submit(ctx, body.WorkspaceID, runner.ProcessWorkspace)
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"status":    "accepted",
				"workspace": body.WorkspaceID,
			})
		})
	})

	return r
}

func bearerAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Authorization") != "Bearer "+secret {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
