// councild is a CLI harness that runs one query through the council
// pipeline and prints the resulting PipelineResult as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"dev.helix.agent/council/internal/cache"
	"dev.helix.agent/council/internal/config"
	"dev.helix.agent/council/internal/council"
	"dev.helix.agent/council/internal/invoker"
	"dev.helix.agent/council/internal/models"
	"dev.helix.agent/council/internal/stats"
)

func main() {
	// Load environment variables from a .env file, if present, into the
	// process environment. The config below is not read from the
	// environment: hosted-backend API keys come from the YAML config only.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "councild: failed to load .env: %v\n", err)
	}

	var (
		query      string
		configPath string
		jsonOutput bool
	)

	flag.StringVar(&query, "query", "", "user query to run through the pipeline")
	flag.StringVar(&configPath, "config", "", "path to a YAML config file (defaults built in if empty)")
	flag.BoolVar(&jsonOutput, "json", true, "print the result as JSON")
	flag.Parse()

	if query == "" {
		fmt.Fprintln(os.Stderr, "councild: -query is required")
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			logger.WithError(err).Fatal("failed to load config")
		}
		cfg = loaded
	}

	respCache := cache.New(cfg.Cache.RedisAddr, cfg.Cache.RedisDB, cfg.Cache.Enabled, cfg.CacheTTL(), cfg.Cache.Directory, logger)
	defer respCache.Close()

	driver := council.New(
		logger,
		respCache,
		stats.New(),
		prometheus.DefaultRegisterer,
		stage1Invokers(cfg),
		paraphraseInvoker(cfg),
		reviewerInvokers(cfg),
		chairmanInvoker(cfg),
		cfg.ParallelStage1Global,
		cfg.ParallelReviewersGlobal,
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout())
	defer cancel()

	result, err := driver.Run(ctx, query, models.DefaultQueryOptions(), "")
	if err != nil {
		logger.WithError(err).Fatal("pipeline run failed")
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	}

	if err := driver.Cleanup(); err != nil {
		logger.WithError(err).Warn("cleanup failed")
	}
}

func stage1Invokers(cfg *config.Config) []invoker.Invoker {
	var invokers []invoker.Invoker
	if cfg.Stages.Stage1Local {
		invokers = append(invokers, invoker.NewLocalCompletionInvoker(cfg.LocalCompletion.Name, cfg.LocalCompletion.BaseURL, cfg.PerCallTimeout()))
	}
	if cfg.Stages.Stage1Hosted {
		invokers = append(invokers, invoker.NewHostedInferenceInvoker(cfg.Hosted.Name, cfg.Hosted.BaseURL, cfg.Hosted.Model, cfg.Hosted.APIKey, cfg.PerCallTimeout()))
	}
	return invokers
}

func paraphraseInvoker(cfg *config.Config) invoker.Invoker {
	return invoker.NewLocalCompletionInvoker("paraphrase", cfg.LocalCompletion.BaseURL, cfg.PerCallTimeout())
}

func reviewerInvokers(cfg *config.Config) []invoker.Invoker {
	var invokers []invoker.Invoker
	if cfg.Stages.ReviewerA {
		invokers = append(invokers, invoker.NewLocalCompletionInvoker("Reviewer_A", cfg.LocalCompletion.BaseURL, cfg.PerCallTimeout()))
	}
	if cfg.Stages.ReviewerB {
		invokers = append(invokers, invoker.NewLocalCompletionInvoker("Reviewer_B", cfg.LocalCompletion.BaseURL, cfg.PerCallTimeout()))
	}
	return invokers
}

func chairmanInvoker(cfg *config.Config) invoker.Invoker {
	if !cfg.Stages.Chairman {
		return nil
	}
	return invoker.NewHostedChatInvoker(cfg.HostedChat.Name, cfg.HostedChat.BaseURL, cfg.HostedChat.Model, cfg.HostedChat.APIKey, cfg.PerCallTimeout())
}
