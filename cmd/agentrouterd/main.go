// Command agentrouterd serves the agent request router: the Model Gateway
// Core (C1-C3) and the Agent Orchestration Core (C4-C10) behind one HTTP
// API, wired the way cmd/ferrogw/main.go wires the gateway alone.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	aigateway "github.com/ferro-labs/agentrouter"
	"github.com/ferro-labs/agentrouter/internal/admin"
	"github.com/ferro-labs/agentrouter/internal/ratelimit"
	"github.com/ferro-labs/agentrouter/internal/version"
	"github.com/ferro-labs/agentrouter/orchestrator"
	"github.com/ferro-labs/agentrouter/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	// Register built-in plugins so they can be loaded from config.
	_ "github.com/ferro-labs/agentrouter/internal/plugins/cache"
	_ "github.com/ferro-labs/agentrouter/internal/plugins/logger"
	_ "github.com/ferro-labs/agentrouter/internal/plugins/maxtoken"
	_ "github.com/ferro-labs/agentrouter/internal/plugins/wordfilter"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "agentrouterd",
		Short: "Agent request router: model gateway + agent orchestration",
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("GATEWAY_CONFIG"), "path to the gateway/orchestrator config file")

	root.AddCommand(serveCmd(), validateConfigCmd(), registryCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func loadConfig() (aigateway.Config, error) {
	if configPath == "" {
		return aigateway.Config{}, nil
	}
	cfg, err := aigateway.LoadConfig(configPath)
	if err != nil {
		return aigateway.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := aigateway.ValidateConfig(*cfg); err != nil {
		return aigateway.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return *cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate a config file without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config (or GATEWAY_CONFIG) is required")
			}
			cfg, err := aigateway.LoadConfig(configPath)
			if err != nil {
				fmt.Printf("invalid: %v\n", err)
				return err
			}
			if err := aigateway.ValidateConfig(*cfg); err != nil {
				fmt.Printf("invalid: %v\n", err)
				return err
			}
			fmt.Printf("ok: strategy=%s targets=%d orchestrator.reasoner.mode=%s\n",
				cfg.Strategy.Mode, len(cfg.Targets), cfg.Orchestrator.Reasoner.Mode)
			return nil
		},
	}
}

func registryCmd() *cobra.Command {
	registry := &cobra.Command{Use: "registry", Short: "Inspect the agent registry"}
	registry.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the agent descriptors loaded from agents_file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Orchestrator.Registry.AgentsFile == "" {
				fmt.Println("no agents_file configured")
				return nil
			}
			descriptors, err := registry.LoadDescriptorsFile(cfg.Orchestrator.Registry.AgentsFile)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(descriptors)
		},
	})
	return registry
}

// serve builds the full stack and runs the HTTP server until SIGINT/SIGTERM,
// mirroring cmd/ferrogw/main.go's graceful-shutdown pattern.
func serve(cfg aigateway.Config) error {
	st, err := buildStack(cfg)
	if err != nil {
		return fmt.Errorf("build stack: %w", err)
	}
	if len(st.providerReg.List()) == 0 {
		log.Println("warning: no model providers configured; /v1/generate and AI-strategy reasoning will fail")
	}

	keyStore := admin.NewKeyStore()
	r := newRouter(st, keyStore)

	addr := ":8080"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Println("shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if st.auditSQL != nil {
			_ = st.auditSQL.Close()
		}
	}()

	log.Printf("agentrouterd %s listening on %s (%d provider(s), %d agent(s))",
		version.Short(), addr, len(st.providerReg.List()), len(st.agentReg.List()))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stop()
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// newRouter mounts the gateway's provider-facing surface alongside the
// orchestrator's /query endpoint and the admin API.
func newRouter(st *stack, keyStore admin.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/providers", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": st.providerReg.List()})
	})

	r.Post("/v1/generate", generateHandler(st))

	orchHandlers := &orchestrator.Handlers{
		Orchestrator: st.orchestrator,
		Limiter:      ratelimit.NewStore(5, 20),
	}
	r.Post("/query", orchHandlers.ServeQuery)

	adminHandlers := &admin.Handlers{Keys: keyStore, Providers: st.providerReg}
	orchAdmin := &admin.OrchestratorHandlers{Registry: st.agentReg, Audit: st.auditSQL}
	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.AuthMiddleware(keyStore))
		adminRouter := adminHandlers.Routes()
		adminRouter.Mount("/", orchAdmin.Routes())
		r.Mount("/", adminRouter)
	})

	return r
}

// generateHandler exposes the Gateway Router's generate() operation
// directly, independent of the orchestrator's /query path, for callers that
// already know which agent/model they want.
func generateHandler(st *stack) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req aigateway.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := req.Request.Validate(); err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		resp, err := st.gateway.Generate(r.Context(), req, len(req.FallbackOrder)+1)
		if err != nil {
			writeErr(w, http.StatusBadGateway, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func writeErr(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
