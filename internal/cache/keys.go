package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func IssueListKey(tenantID uuid.UUID, filterHash string) string {
	return fmt.Sprintf("issues:list:%s:%s", tenantID, filterHash)
}

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

func RunMarkerKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("run:active:%s", tenantID)
}
