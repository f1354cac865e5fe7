package main

import (
	"fmt"
	"os"

	"github.com/polarisbot/polaris/common/environment"
	"github.com/polarisbot/polaris/common/version"
	"github.com/polarisbot/polaris/internal/polaris/app"
	"github.com/polarisbot/polaris/internal/polaris/matrix"
)

func main() {
	fmt.Printf("Polaris Assistant\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	config := loadConfig()

	if config.Matrix.Homeserver == "" {
		fmt.Fprintf(os.Stderr, "Error: MATRIX_HOMESERVER is required\n")
		os.Exit(1)
	}
	if config.Matrix.UserID == "" {
		fmt.Fprintf(os.Stderr, "Error: MATRIX_USER_ID is required\n")
		os.Exit(1)
	}
	if config.Matrix.AccessToken == "" {
		fmt.Fprintf(os.Stderr, "Error: MATRIX_ACCESS_TOKEN is required\n")
		os.Exit(1)
	}
	if config.HTTPAddr != "" && config.BaseURL == "" {
		fmt.Fprintf(os.Stderr, "Error: POLARIS_BASE_URL is required when POLARIS_HTTP_ADDR is set\n")
		os.Exit(1)
	}

	polaris, err := app.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Polaris: %v\n", err)
		os.Exit(1)
	}
	defer polaris.Stop()

	if err := polaris.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Polaris: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from environment variables.
func loadConfig() *app.Config {
	return &app.Config{
		DatabasePath: environment.StringOr("DATABASE_PATH", "./polaris.db"),
		Matrix: matrix.Config{
			Homeserver:  environment.StringOr("MATRIX_HOMESERVER", ""),
			UserID:      environment.StringOr("MATRIX_USER_ID", ""),
			AccessToken: environment.StringOr("MATRIX_ACCESS_TOKEN", ""),
			Rooms:       environment.StringSliceOr("MATRIX_ROOMS", nil),
		},
		BaseURL:          environment.StringOr("POLARIS_BASE_URL", ""),
		HTTPAddr:         environment.StringOr("POLARIS_HTTP_ADDR", ""),
		BreakGlassAdmins: environment.StringSliceOr("POLARIS_BREAK_GLASS_ADMINS", nil),
		RateLimit:        environment.IntOr("POLARIS_RATE_LIMIT", 0),
		CacheTTL:         environment.DurationOr("POLARIS_CACHE_TTL", 0),
		SeedWorkbookPath: environment.StringOr("POLARIS_SEED_WORKBOOK", ""),
		LLMBaseURL:       environment.StringOr("OPENAI_BASE_URL", ""),
	}
}
