package store

import "fmt"

func RateLimitKey(subject string) string {
	return fmt.Sprintf("sandbox:ratelimit:%s", subject)
}
