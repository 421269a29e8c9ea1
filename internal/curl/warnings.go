package curl

import (
	"fmt"
	"sort"
	"strings"
)

type WarningCollector struct {
	seen map[string]struct{}
}

func newWarningCollector() *WarningCollector {
	return &WarningCollector{}
}

func (c *WarningCollector) Add(msg string) {
	if c == nil {
		return
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return
	}
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	c.seen[msg] = struct{}{}
}

func (c *WarningCollector) Header(format, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	c.Add(fmt.Sprintf(format, name))
}

func (c *WarningCollector) List() []string {
	if c == nil || len(c.seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.seen))
	for msg := range c.seen {
		out = append(out, msg)
	}
	sort.Strings(out)
	return out
}
