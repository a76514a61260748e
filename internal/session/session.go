// Package session holds the client's notion of who is signed in.
package session

import (
	"sync"

	"bruhbug-service/internal/entity"
)

// Context is created at startup, populated after an auth check and cleared
// on logout. It is passed explicitly to everything that needs the caller.
type Context struct {
	mu    sync.RWMutex
	token string
	user  *entity.User
}

func New() *Context {
	return &Context{}
}

// Populate records the authenticated user and the token that proved it.
func (c *Context) Populate(token string, user *entity.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	if user == nil {
		c.user = nil
		return
	}
	cp := *user
	c.user = &cp
}

func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.user = nil
}

// Current returns a copy of the signed-in user, or nil.
func (c *Context) Current() *entity.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	cp := *c.user
	return &cp
}

func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Context) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user != nil && c.user.ID != ""
}
