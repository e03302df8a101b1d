package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's login session
func (r *CacheKeyStruct) UserSessionKey(userID string) string {
	return fmt.Sprintf("login:%s", userID)
}

// AttemptStartKey returns the cache key for a user's attempt start time
func (r *CacheKeyStruct) AttemptStartKey(assessmentID, userID string) string {
	return fmt.Sprintf("user:%s:assessment:%s:attempt_start", userID, assessmentID)
}

// AttemptAnswersKey returns the cache key for a user's autosaved answers
func (r *CacheKeyStruct) AttemptAnswersKey(assessmentID, userID string) string {
	return fmt.Sprintf("user:%s:assessment:%s:answers", userID, assessmentID)
}

// AssessmentPayloadKey returns the cache key for an assessment's student paper
func (r *CacheKeyStruct) AssessmentPayloadKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:payload", assessmentID)
}

// AssessmentDurationKey returns the cache key for an assessment's duration
func (r *CacheKeyStruct) AssessmentDurationKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:duration", assessmentID)
}

// AssessmentKeyKey returns the cache key for an assessment's answer key
func (r *CacheKeyStruct) AssessmentKeyKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:key", assessmentID)
}

// AssessmentSettingsKey returns the cache key for an assessment's settings bundle
func (r *CacheKeyStruct) AssessmentSettingsKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:settings", assessmentID)
}

var CacheKey = NewCacheKeyStruct()
