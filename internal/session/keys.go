package session

import "fmt"

func CredentialsKey(profile string) string {
	return fmt.Sprintf("session:%s", profile)
}
