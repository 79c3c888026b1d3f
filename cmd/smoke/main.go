package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"postboard.dev/internal/ids"
)

type client struct {
	base string
	http *http.Client
}

func main() {
	base := pflag.String("base", envOr("POSTBOARD_BASE_URL", "http://localhost:8080"), "API base URL")
	timeout := pflag.Duration("timeout", 10*time.Second, "overall deadline")
	pflag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, *base); err != nil {
		fmt.Fprintf(os.Stderr, "smoke failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, base string) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	c := &client{base: strings.TrimRight(base, "/"), http: &http.Client{Jar: jar}}

	email := "smoke-" + strings.ToLower(ids.New()) + "@example.com"
	if err := c.call(ctx, http.MethodPost, "/api/sign-up", map[string]any{
		"email": email, "password": "smoke-password", "name": "Alice", "age": 30,
	}, http.StatusCreated, nil); err != nil {
		return fmt.Errorf("sign-up: %w", err)
	}
	if err := c.call(ctx, http.MethodPost, "/api/sign-in", map[string]any{
		"email": email, "password": "smoke-password",
	}, http.StatusOK, nil); err != nil {
		return fmt.Errorf("sign-in: %w", err)
	}

	var upd struct {
		Changes []struct {
			ChangedField string `json:"changedField"`
			OldValue     string `json:"oldValue"`
			NewValue     string `json:"newValue"`
		} `json:"changes"`
	}
	if err := c.call(ctx, http.MethodPatch, "/api/users", map[string]any{"name": "Bob", "age": 30}, http.StatusOK, &upd); err != nil {
		return fmt.Errorf("patch: %w", err)
	}
	if len(upd.Changes) != 1 || upd.Changes[0].OldValue != "Alice" || upd.Changes[0].NewValue != "Bob" {
		return fmt.Errorf("unexpected changes: %+v", upd.Changes)
	}

	var hist struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/users/history", nil, http.StatusOK, &hist); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if len(hist.Items) != 1 {
		return fmt.Errorf("expected 1 history entry, got %d", len(hist.Items))
	}

	fmt.Printf("smoke test passed: %s renamed Alice -> Bob with one history entry\n", email)
	return nil
}

func (c *client) call(ctx context.Context, method, path string, body any, want int, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != want {
		return fmt.Errorf("status %d, want %d: %s", resp.StatusCode, want, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
