package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/upgrade"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("goclaw doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	fmt.Printf("  Config:   %s (OK)\n", cfgPath)

	fmt.Println()
	fmt.Println("  Database:")
	if cfg.Database.PostgresDSN == "" {
		fmt.Println("    Status:      NOT CONFIGURED (set GOCLAW_POSTGRES_DSN)")
	} else {
		db, dbErr := sql.Open("pgx", cfg.Database.PostgresDSN)
		if dbErr != nil {
			fmt.Printf("    Status:      CONNECT FAILED (%s)\n", dbErr)
		} else {
			defer db.Close()
			if pingErr := db.Ping(); pingErr != nil {
				fmt.Printf("    Status:      CONNECT FAILED (%s)\n", pingErr)
			} else {
				s, schemaErr := upgrade.CheckSchema(db)
				if schemaErr != nil {
					fmt.Printf("    Schema:      CHECK FAILED (%s)\n", schemaErr)
				} else if s.Dirty {
					fmt.Printf("    Schema:      v%d (DIRTY — run: goclaw migrate force %d)\n", s.CurrentVersion, s.CurrentVersion-1)
				} else if s.Compatible {
					fmt.Printf("    Schema:      v%d (up to date)\n", s.CurrentVersion)
				} else if s.CurrentVersion > s.RequiredVersion {
					fmt.Printf("    Schema:      v%d (binary too old, requires v%d)\n", s.CurrentVersion, s.RequiredVersion)
				} else {
					fmt.Printf("    Schema:      v%d (upgrade needed — run: goclaw upgrade)\n", s.CurrentVersion)
				}

				pending, hookErr := upgrade.PendingHooks(context.Background(), db)
				if hookErr == nil && len(pending) > 0 {
					fmt.Printf("    Data hooks:  %d pending\n", len(pending))
				} else if hookErr == nil {
					fmt.Println("    Data hooks:  all applied")
				}
			}
		}
	}

	fmt.Println()
	fmt.Println("  Providers:")
	checkProvider("Classifier", cfg.Providers.Classifier.Provider, roleKey(cfg, cfg.Providers.Classifier.Provider))
	checkProvider("Executor", cfg.Providers.Executor.Provider, roleKey(cfg, cfg.Providers.Executor.Provider))
	verifier := cfg.Providers.Verifier
	if verifier.Provider == "" {
		verifier = cfg.Providers.Classifier
	}
	checkProvider("Verifier", verifier.Provider, roleKey(cfg, verifier.Provider))

	fmt.Println()
	fmt.Println("  Telegram:")
	checkChannel("Telegram", cfg.Telegram.Token != "", cfg.Telegram.Mode)

	fmt.Println()
	fmt.Println("  Media backends:")
	checkMediaBackend("Speech-to-text", cfg.Media.SpeechToText.URL)
	checkMediaBackend("Vision", cfg.Media.Vision.URL)
	checkMediaBackend("Document extraction", cfg.Media.DocumentExtraction.URL)

	fmt.Println()
	fmt.Println("  Storage:")
	fmt.Printf("    Driver:      %s\n", cfg.Storage.Driver)

	fmt.Println()
	fmt.Println("  External Tools:")
	checkBinary("curl")
	checkBinary("git")

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func roleKey(cfg *config.Config, provider string) string {
	switch provider {
	case "anthropic":
		return cfg.Providers.Anthropic.APIKey
	case "openai":
		return cfg.Providers.OpenAI.APIKey
	case "openrouter":
		return cfg.Providers.OpenRouter.APIKey
	case "gemini":
		return cfg.Providers.Gemini.APIKey
	case "groq":
		return cfg.Providers.Groq.APIKey
	case "deepseek":
		return cfg.Providers.DeepSeek.APIKey
	case "mistral":
		return cfg.Providers.Mistral.APIKey
	case "xai":
		return cfg.Providers.XAI.APIKey
	case "dashscope":
		return cfg.Providers.DashScope.APIKey
	default:
		return ""
	}
}

func checkProvider(role, provider, apiKey string) {
	if provider == "" {
		fmt.Printf("    %-12s (not bound)\n", role+":")
		return
	}
	if apiKey != "" {
		masked := apiKey
		if len(apiKey) > 8 {
			masked = apiKey[:4] + strings.Repeat("*", len(apiKey)-8) + apiKey[len(apiKey)-4:]
		}
		fmt.Printf("    %-12s %s (%s)\n", role+":", provider, masked)
	} else {
		fmt.Printf("    %-12s %s (NO API KEY)\n", role+":", provider)
	}
}

func checkChannel(name string, hasToken bool, mode string) {
	if !hasToken {
		fmt.Printf("    %-12s NOT CONFIGURED (set GOCLAW_TELEGRAM_TOKEN)\n", name+":")
		return
	}
	fmt.Printf("    %-12s configured (mode: %s)\n", name+":", mode)
}

func checkMediaBackend(name, url string) {
	if url == "" {
		fmt.Printf("    %-20s (not configured)\n", name+":")
	} else {
		fmt.Printf("    %-20s %s\n", name+":", url)
	}
}

func checkBinary(name string) {
	path, err := exec.LookPath(name)
	if err != nil {
		fmt.Printf("    %-12s NOT FOUND\n", name+":")
	} else {
		fmt.Printf("    %-12s %s\n", name+":", path)
	}
}
