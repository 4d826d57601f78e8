package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ClassSummaryKey returns the cache key for one class's card summary at a
// given cache generation
func (r *CacheKeyStruct) ClassSummaryKey(classID int, gen int64) string {
	return fmt.Sprintf("class:%d:summary:%d", classID, gen)
}

// ClassGenerationKey returns the counter bumped on every change to one class
func (r *CacheKeyStruct) ClassGenerationKey(classID int) string {
	return fmt.Sprintf("class:%d:gen", classID)
}

// ClassSummaryListKey returns the cache key for the summaries of all classes
// at a given cache generation
func (r *CacheKeyStruct) ClassSummaryListKey(gen int64) string {
	return fmt.Sprintf("class:summaries:%d", gen)
}

// ClassListGenerationKey returns the counter bumped on every change to any class
func (r *CacheKeyStruct) ClassListGenerationKey() string {
	return "class:summaries:gen"
}

// ClassChangedChannel returns the Redis PubSub channel notified when a class's card changes
func (r *CacheKeyStruct) ClassChangedChannel(classID int) string {
	return fmt.Sprintf("class:%d:changed", classID)
}

var CacheKey = NewCacheKeyStruct()
