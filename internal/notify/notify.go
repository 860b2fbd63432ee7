// Package notify delivers short user-facing messages.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const userAgent = "vaultscribe/1"

type Level int

const (
	LevelInfo Level = iota
	LevelError
)

type Message struct {
	Level Level
	Title string
	Body  string
}

// Notifier delivers a message. Implementations must be safe for concurrent
// use.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Console writes one line per message.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Notify(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := ""
	if msg.Level == LevelError {
		prefix = "error: "
	}
	_, err := fmt.Fprintf(c.out, "%s%s\n", prefix, msg.Body)
	return err
}

// Ntfy posts messages to an ntfy topic URL.
type Ntfy struct {
	endpoint string
	client   *http.Client
}

func NewNtfy(topicURL string, timeout time.Duration) *Ntfy {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{endpoint: strings.TrimSpace(topicURL), client: &http.Client{Timeout: timeout}}
}

func (n *Ntfy) Notify(ctx context.Context, msg Message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("create ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	tags := "vaultscribe"
	if msg.Level == LevelError {
		tags += ",warning"
		req.Header.Set("Priority", "high")
	}
	req.Header.Set("Tags", tags)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every message.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }
