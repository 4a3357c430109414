/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous usage events and crash reports.
// Nothing is sent unless VNE_TELEMETRY_OPT_IN is set and an endpoint is
// configured.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"

	applog "vnengine/internal/log"
	"vnengine/internal/version"
)

// Config is read from the environment by FromEnv.
type Config struct {
	OptIn     bool          `env:"VNE_TELEMETRY_OPT_IN"`
	EventsURL string        `env:"VNE_TELEMETRY_URL"`
	CrashURL  string        `env:"VNE_CRASH_UPLOAD_URL"`
	Timeout   time.Duration `env:"VNE_TELEMETRY_TIMEOUT" envDefault:"1500ms"`
}

// FromEnv parses Config; malformed values disable telemetry.
func FromEnv() Config {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		applog.WithComponent("telemetry").Warn("telemetry disabled", slog.Any("err", err))
		return Config{}
	}
	return cfg
}

// Client queues events and posts them from one goroutine. Events are dropped
// when the queue is full or a send fails.
type Client struct {
	cfg     Config
	log     *slog.Logger
	cli     *http.Client
	q       chan map[string]any
	pending sync.WaitGroup
	once    sync.Once
	done    chan struct{}
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	c := &Client{
		cfg:  cfg,
		log:  applog.WithComponent("telemetry"),
		cli:  &http.Client{Timeout: cfg.Timeout},
		q:    make(chan map[string]any, 64),
		done: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events are sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues name with props. Props must not carry script text or paths.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := map[string]any{
		"name":    name,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"version": version.String(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for k, v := range props {
		payload[k] = v
	}
	c.pending.Add(1)
	select {
	case c.q <- payload:
	default:
		c.pending.Done()
	}
}

// Flush waits until queued events were sent or ctx ends.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	drained := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
	}
}

// Close flushes for at most the send timeout and stops the sender.
func (c *Client) Close() {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	c.Flush(ctx)
	c.once.Do(func() { close(c.done) })
}

func (c *Client) loop() {
	for {
		select {
		case <-c.done:
			return
		case item := <-c.q:
			if err := c.post(c.cfg.EventsURL, "application/json", item); err != nil {
				c.log.Debug("telemetry send failed", slog.Any("err", err))
			}
			c.pending.Done()
		}
	}
}

func (c *Client) post(url, contentType string, body any) error {
	var buf []byte
	switch b := body.(type) {
	case []byte:
		buf = b
	default:
		var err error
		if buf, err = json.Marshal(b); err != nil {
			return err
		}
	}
	resp, err := c.cli.Post(url, contentType, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}
	return nil
}

// UploadCrash posts a crash report and waits for the answer, bounded by the
// send timeout. It does nothing unless opted in with a crash URL.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	if err := c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", report); err != nil {
		c.log.Debug("crash upload failed", slog.Any("err", err))
		return
	}
	c.log.Info("crash report uploaded")
}
