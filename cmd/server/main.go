package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/agentmem/somnia/internal/config"
	"github.com/agentmem/somnia/internal/core"
	"github.com/agentmem/somnia/internal/core/model"
	"github.com/agentmem/somnia/internal/core/sleep"
	"github.com/agentmem/somnia/internal/driver"
	"github.com/agentmem/somnia/internal/llm"
	"github.com/agentmem/somnia/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Could not load %s: %v. Using built-in defaults", cfgPath, err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	d, err := driver.NewMemgraphDriver(cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
	if err != nil {
		log.Fatalf("Failed to connect to Memgraph: %v", err)
	}
	defer d.Close(context.Background())

	llmClient, embedderClient, err := llm.NewClient(context.Background(), cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	engine := core.NewEngine(d, llmClient, embedderClient, cfg)
	if err := engine.BuildIndices(context.Background()); err != nil {
		log.Printf("Warning: failed to build indices: %v", err)
	}

	if target := autoSleepTarget(cfg.Sleep); target != (model.SleepTarget{}) {
		opts := model.DefaultSleepOptions()
		opts.CooldownMinutes = cfg.Sleep.CooldownMinutes
		err := engine.StartAutoSleep(sleep.AutoSleepConfig{
			Hour:    cfg.Sleep.Hour,
			Minute:  cfg.Sleep.Minute,
			Target:  target,
			Options: opts,
			OnComplete: func(report *model.SleepReport) {
				log.Printf("Sleep cycle finished in %dms", report.DurationMS)
			},
			OnError: func(err error) { log.Printf("Sleep cycle failed: %v", err) },
		})
		if err != nil {
			log.Fatalf("Invalid sleep schedule: %v", err)
		}
		log.Printf("Auto sleep scheduled daily at %02d:%02d", cfg.Sleep.Hour, cfg.Sleep.Minute)
	}

	srv := server.NewServer(engine)
	r := srv.SetupRouter()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Starting server on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}

func autoSleepTarget(cfg config.SleepConfig) model.SleepTarget {
	if cfg.AutoSTMGroupID != "" || cfg.AutoLTMGroupID != "" {
		return model.SleepTarget{STMGroupID: cfg.AutoSTMGroupID, LTMGroupID: cfg.AutoLTMGroupID}
	}
	return model.SleepTarget{GroupID: cfg.AutoGroupID}
}
