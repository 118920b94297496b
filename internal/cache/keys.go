package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func AnalysisStatusKey(analysisID uuid.UUID) string {
	return fmt.Sprintf("analysis:%s:status", analysisID)
}

func RateLimitKey(clientID string) string {
	return fmt.Sprintf("ratelimit:%s", clientID)
}
