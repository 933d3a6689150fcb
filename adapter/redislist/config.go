package redislist

import (
	"fmt"
	"os"
	"time"
)

// Config for the Redis list mailbox store.
type Config struct {
	// Connection
	Addr          string
	Username      string
	Password      string
	DB            int
	TLS           bool
	TLSServerName string
	DialTimeout   time.Duration

	// Prefix namespaces every mailbox key.
	Prefix string
	// Capacity bounds each mailbox; Push returns xagent.ErrMailboxFull when reached (0 = unbounded).
	Capacity int64
	// KeepOnClose leaves the mailboxes in Redis when the store closes.
	KeepOnClose bool
}

// Defaults returns a Config pointing at a local Redis with a per-process prefix.
func Defaults() Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "xagent"
	}

	return Config{
		Addr:        "127.0.0.1:6379",
		DB:          0,
		DialTimeout: 2 * time.Second,
		Prefix:      fmt.Sprintf("xagent:%s:%d", hostname, os.Getpid()),
	}
}

// Validate checks Config before connecting.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr required")
	}
	if c.Prefix == "" {
		return fmt.Errorf("config: prefix required")
	}
	if c.Capacity < 0 {
		return fmt.Errorf("config: capacity must be >= 0, got %d", c.Capacity)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("config: dial_timeout must be > 0, got %v", c.DialTimeout)
	}
	return nil
}

// toMap converts Config to generic map for the store factory.
func (c Config) toMap() map[string]any {
	return map[string]any{
		"addr":            c.Addr,
		"username":        c.Username,
		"password":        c.Password,
		"db":              c.DB,
		"tls":             c.TLS,
		"tls_server_name": c.TLSServerName,
		"dial_timeout":    c.DialTimeout,
		"prefix":          c.Prefix,
		"capacity":        c.Capacity,
		"keep_on_close":   c.KeepOnClose,
	}
}

// ConfigFromMap safely converts generic map to Config with defaults.
// Values decoded from YAML or JSON (float64, duration strings) are accepted too.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()

	if v, ok := m["addr"].(string); ok && v != "" {
		c.Addr = v
	}
	if v, ok := m["username"].(string); ok {
		c.Username = v
	}
	if v, ok := m["password"].(string); ok {
		c.Password = v
	}
	if v, ok := toInt64(m["db"]); ok {
		c.DB = int(v)
	}
	if v, ok := m["tls"].(bool); ok {
		c.TLS = v
	}
	if v, ok := m["tls_server_name"].(string); ok {
		c.TLSServerName = v
	}
	switch v := m["dial_timeout"].(type) {
	case time.Duration:
		if v > 0 {
			c.DialTimeout = v
		}
	case string:
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.DialTimeout = d
		}
	}
	if v, ok := m["prefix"].(string); ok && v != "" {
		c.Prefix = v
	}
	if v, ok := toInt64(m["capacity"]); ok && v >= 0 {
		c.Capacity = v
	}
	if v, ok := m["keep_on_close"].(bool); ok {
		c.KeepOnClose = v
	}

	return c
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
