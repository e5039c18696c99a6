package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Write a default config file and report missing required environment variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnboard()
		},
	}
}

func runOnboard() error {
	cfgPath := resolveConfigPath()

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s, leaving it in place.\n", cfgPath)
	} else {
		if err := config.Save(cfgPath, config.Default()); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
		fmt.Printf("Wrote default config to %s\n", cfgPath)
	}

	fmt.Println()
	fmt.Println("Required environment variables:")
	required := []string{
		"GOCLAW_TELEGRAM_TOKEN",
		"GOCLAW_POSTGRES_DSN",
	}
	missing := 0
	for _, name := range required {
		if os.Getenv(name) == "" {
			fmt.Printf("  [MISSING] %s\n", name)
			missing++
		} else {
			fmt.Printf("  [OK]      %s\n", name)
		}
	}

	fmt.Println()
	fmt.Println("At least one LLM provider key (e.g. GOCLAW_ANTHROPIC_API_KEY) is also required.")
	fmt.Println("GOCLAW_WEBHOOK_SECRET is optional; when set, webhook requests must carry it.")

	if missing > 0 {
		fmt.Println()
		fmt.Println("Set the missing variables above, then run 'goclaw migrate up' and 'goclaw doctor'.")
	}
	return nil
}
