package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/townsquare-live/townsquare/backend/go/internal/v1/logging"
)

// GetAllowedOriginsFromEnv reads a comma-separated origin allow-list from the
// named environment variable, falling back to defaults for local development.
func GetAllowedOriginsFromEnv(envVarName string, defaultOrigins []string) []string {
	// Example: TOWNS_ALLOWED_ORIGINS="http://localhost:3000,https://your-app.com"
	originsStr := os.Getenv(envVarName)
	if originsStr == "" {
		logging.Warn(context.Background(), fmt.Sprintf("%s environment variable not set. Using default development origins:\n%s", envVarName, defaultOrigins))
		return defaultOrigins
	}
	return strings.Split(originsStr, ",")
}
