package balance

import (
	"sync"

	"savemore/contexts/community-experience/view-settlement/domain/entities"
)

// Cache is a session's last known balance. Set is last-write-wins and
// notifies the optional listener outside the lock.
type Cache struct {
	mu       sync.RWMutex
	balance  entities.Balance
	known    bool
	onChange func(entities.Balance)
}

func NewCache(onChange func(entities.Balance)) *Cache {
	return &Cache{onChange: onChange}
}

func (c *Cache) Get() (entities.Balance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balance, c.known
}

func (c *Cache) Set(balance entities.Balance) {
	c.mu.Lock()
	c.balance = balance
	c.known = true
	c.mu.Unlock()
	if c.onChange != nil {
		c.onChange(balance)
	}
}
