// Package cache хранит сериализованные в JSON значения с TTL в Redis или в памяти.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Cache общее хранилище кэша.
type Cache interface {
	// Get читает значение в dest; false, если ключа нет или срок истёк.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Memory кэш в памяти процесса, используется без REDIS_URL и в тестах.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	now   func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemory создаёт кэш и запускает фоновую очистку, которая живёт, пока жив ctx.
func NewMemory(ctx context.Context) *Memory {
	m := &Memory{items: make(map[string]memoryEntry), now: time.Now}
	go m.cleanup(ctx, 5*time.Minute)
	return m
}

func (m *Memory) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()

	if !ok || m.now().After(e.expiresAt) {
		return false, nil
	}
	return true, json.Unmarshal(e.data, dest)
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.items[key] = memoryEntry{data: data, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.items, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for key, e := range m.items {
				if now.After(e.expiresAt) {
					delete(m.items, key)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Ключи кэша.
func ShortURLKey(code string) string {
	return "url:code:" + code
}

func SEOAnalysisKey(contentHash, keyword string) string {
	return "seo:" + contentHash + ":" + strings.ToLower(keyword)
}
