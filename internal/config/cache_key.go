package config

import "fmt"

// CacheKeyStruct namespaces every Redis key the application uses.
type CacheKeyStruct struct{}

// UserLoginKey returns the key holding a user's active login JTI.
func (r *CacheKeyStruct) UserLoginKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// SessionByAccessCodeKey returns the key caching an access-code lookup.
func (r *CacheKeyStruct) SessionByAccessCodeKey(accessCode string) string {
	return fmt.Sprintf("session:code:%s", accessCode)
}

// SessionMonitorChannel returns the pub/sub channel carrying live events
// (violations, submissions, locks) for one exam session.
func (r *CacheKeyStruct) SessionMonitorChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:monitor", sessionID)
}

var CacheKey = &CacheKeyStruct{}
