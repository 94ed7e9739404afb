package page

import (
	"strings"
	"sync"
)

// Composer is the comment input box. Its text is exactly what the user
// last typed.
type Composer struct {
	mu   sync.Mutex
	text string
}

func (c *Composer) Set(text string) {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
}

func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

func (c *Composer) Clear() {
	c.Set("")
}

// Blank reports whether the text is empty after trimming.
func (c *Composer) Blank() bool {
	return strings.TrimSpace(c.Text()) == ""
}
