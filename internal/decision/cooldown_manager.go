package decision

import (
	"sync"
	"time"
)

// CooldownManager remembers recently actioned accounts per guild so repeated
// detections of the same account within the cooldown are not actioned again.
type CooldownManager struct {
	mu        sync.Mutex
	cooldowns map[string]map[string]time.Time
	now       func() time.Time
}

func NewCooldownManager() *CooldownManager {
	return &CooldownManager{
		cooldowns: make(map[string]map[string]time.Time),
		now:       time.Now,
	}
}

func (cm *CooldownManager) CanExecute(guildID, key string) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.canExecute(guildID, key)
}

func (cm *CooldownManager) canExecute(guildID, key string) bool {
	until, exists := cm.cooldowns[guildID][key]
	if !exists {
		return true
	}
	if !cm.now().Before(until) {
		delete(cm.cooldowns[guildID], key)
		return true
	}
	return false
}

func (cm *CooldownManager) RecordExecution(guildID, key string, d time.Duration) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.record(guildID, key, d)
}

func (cm *CooldownManager) record(guildID, key string, d time.Duration) {
	if _, exists := cm.cooldowns[guildID]; !exists {
		cm.cooldowns[guildID] = make(map[string]time.Time)
	}
	cm.cooldowns[guildID][key] = cm.now().Add(d)
}

// TryAcquire records the key and reports true unless it is still cooling down.
func (cm *CooldownManager) TryAcquire(guildID, key string, d time.Duration) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.canExecute(guildID, key) {
		return false
	}
	cm.record(guildID, key, d)
	return true
}

func (cm *CooldownManager) Reset(guildID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	delete(cm.cooldowns, guildID)
}

func (cm *CooldownManager) GetRemainingCooldown(guildID, key string) time.Duration {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	until, exists := cm.cooldowns[guildID][key]
	if !exists {
		return 0
	}
	remaining := until.Sub(cm.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
