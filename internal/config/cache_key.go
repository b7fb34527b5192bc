package config

import (
	"fmt"
	"strings"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key holding the active token id of a user.
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// ExamPayloadKey returns the cache key for the student-facing payload of an exam, by join code.
func (r *CacheKeyStruct) ExamPayloadKey(examCode string) string {
	return fmt.Sprintf("exam:code:%s:payload", strings.ToUpper(examCode))
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

// StudentWarningsKey returns the hash holding the last reported warning count per student of an exam.
func (r *CacheKeyStruct) StudentWarningsKey(examID string) string {
	return fmt.Sprintf("exam:%s:warnings", examID)
}

var CacheKey = NewCacheKeyStruct()
