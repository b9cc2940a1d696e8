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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/casepilot/casepilot/api"
	"github.com/casepilot/casepilot/cache"
	"github.com/casepilot/casepilot/config"
	"github.com/casepilot/casepilot/llm"
	"github.com/casepilot/casepilot/policy"
	"github.com/casepilot/casepilot/service"
	"github.com/casepilot/casepilot/store"
	"github.com/casepilot/casepilot/tools"
)

func main() {
	root := &cobra.Command{
		Use:   "casepilot",
		Short: "Financial issue investigation engine",
	}
	root.AddCommand(serveCmd(), investigateCmd(), replayCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg   *config.Config
	store store.Store
	svc   *service.Service
}

func buildApp(ctx context.Context) (*app, error) {
	cfg := config.Load()

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	catalog := tools.DefaultCatalog()
	if cfg.CatalogPath != "" {
		catalog, err = tools.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load tool catalog: %w", err)
		}
	}

	registry := tools.NewRegistry()
	tools.RegisterBuiltin(registry)

	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout)
	svc := service.New(db, llmClient, registry, catalog, cache.New(), policyEngine, cfg)

	return &app{cfg: cfg, store: db, svc: svc}, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.store.Close()

			log.Printf("Starting casepilot...")
			log.Printf("HTTP Port: %d", a.cfg.HTTPPort)
			log.Printf("Database: %s", a.cfg.DatabaseURL)
			log.Printf("LLM URL: %s", a.cfg.LLMBaseURL)

			if _, err := store.SeedDemoIssues(ctx, a.store); err != nil {
				log.Printf("ERROR: failed to seed demo issues: %v", err)
			}

			e := echo.New()
			e.HideBanner = true
			e.Use(middleware.Logger())
			e.Use(middleware.Recover())
			e.Use(middleware.CORS())

			h := api.NewHandler(a.svc, a.cfg)
			h.RegisterRoutes(e)

			go func() {
				addr := fmt.Sprintf(":%d", a.cfg.HTTPPort)
				if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()

			log.Printf("API started on port %d", a.cfg.HTTPPort)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Println("Shutting down casepilot...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				log.Printf("Failed to shutdown server gracefully: %v", err)
			}

			log.Println("Casepilot stopped")
			return nil
		},
	}
}

func investigateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "investigate <issue-id>",
		Short: "Run a single investigation and print the trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.store.Close()

			if _, err := store.SeedDemoIssues(ctx, a.store); err != nil {
				log.Printf("ERROR: failed to seed demo issues: %v", err)
			}

			trace, err := a.svc.Investigate(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, trace)
		},
	}
}

func replayCmd() *cobra.Command {
	var n int
	var seed int
	cmd := &cobra.Command{
		Use:   "replay <trace-id>",
		Short: "Replay an investigation against paraphrased variants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.store.Close()

			var seedPtr *int
			if cmd.Flags().Changed("seed") {
				seedPtr = &seed
			}
			session, err := a.svc.Replay(ctx, args[0], n, seedPtr)
			if err != nil {
				return err
			}
			return printJSON(cmd, session)
		},
	}
	cmd.Flags().IntVarP(&n, "runs", "n", 3, "number of replay variants")
	cmd.Flags().IntVar(&seed, "seed", 0, "deterministic seed forwarded to the model")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo issues into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.store.Close()

			inserted, err := store.SeedDemoIssues(ctx, a.store)
			if err != nil {
				return err
			}
			log.Printf("Seeded %d demo issues (%d inserted)", len(store.DemoIssues), inserted)
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
