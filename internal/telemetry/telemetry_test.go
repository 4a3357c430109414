/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type sink struct {
	mu      sync.Mutex
	events  [][]byte
	crashes [][]byte
}

func (s *sink) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	record := func(dst *[][]byte) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			_ = r.Body.Close()
			s.mu.Lock()
			*dst = append(*dst, b)
			s.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}
	}
	mux.HandleFunc("/events", record(&s.events))
	mux.HandleFunc("/crash", record(&s.crashes))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientEventAndUploadCrash(t *testing.T) {
	var s sink
	srv := s.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()

	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}
	c.Event("playback_finished", map[string]any{"frames": 3})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Flush(ctx)

	s.mu.Lock()
	if len(s.events) != 1 {
		s.mu.Unlock()
		t.Fatalf("events sent = %d", len(s.events))
	}
	var m map[string]any
	if err := json.Unmarshal(s.events[0], &m); err != nil {
		s.mu.Unlock()
		t.Fatalf("bad event json: %v", err)
	}
	s.mu.Unlock()
	if m["name"] != "playback_finished" || m["frames"] != float64(3) {
		t.Fatalf("event = %v", m)
	}
	if _, ok := m["ts"].(string); !ok {
		t.Fatalf("missing ts field")
	}

	c.UploadCrash([]byte("STACKTRACE"))
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.crashes) != 1 || string(s.crashes[0]) != "STACKTRACE" {
		t.Fatalf("crashes = %q", s.crashes)
	}
}

func TestDisabledSendsNothing(t *testing.T) {
	var s sink
	srv := s.server(t)
	c := New(Config{EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash"})
	c.Event("x", nil)
	c.UploadCrash([]byte("r"))
	c.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events)+len(s.crashes) != 0 {
		t.Fatal("opted-out client sent data")
	}
	var nilClient *Client
	nilClient.Event("x", nil)
	nilClient.Close()
}

func TestFromEnv(t *testing.T) {
	t.Setenv("VNE_TELEMETRY_OPT_IN", "true")
	t.Setenv("VNE_TELEMETRY_URL", "http://127.0.0.1:0")
	t.Setenv("VNE_TELEMETRY_TIMEOUT", "100ms")
	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv = %+v", cfg)
	}

	t.Setenv("VNE_TELEMETRY_OPT_IN", "maybe")
	if cfg := FromEnv(); cfg.OptIn {
		t.Fatal("malformed opt-in should disable telemetry")
	}
}
