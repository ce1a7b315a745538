// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/portier-bms/portier/internal/config"
)

func testAlwinConfig(baseURL string) *config.AlwinConfig {
	return &config.AlwinConfig{
		BaseURL:           baseURL,
		Username:          "svc",
		Password:          "secret",
		APIKey:            "key-123",
		PageSize:          50,
		Timeout:           5 * time.Second,
		RequestsPerSecond: 100,
		Burst:             10,
	}
}

func TestFetchAccessEvents(t *testing.T) {
	var gotPath, gotAPIKey, gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-KEY")
		gotUser, gotPass, _ = r.BasicAuth()

		if r.URL.Query().Get("pageSize") != "50" {
			t.Errorf("pageSize = %q, want 50", r.URL.Query().Get("pageSize"))
		}
		if r.URL.Query().Get("sortByExpression") != "datetime1 desc" {
			t.Errorf("sortByExpression = %q", r.URL.Query().Get("sortByExpression"))
		}

		w.Header().Set("Content-Type", "application/json")
		// Most-recent-first, as the upstream delivers.
		_, _ = w.Write([]byte(`{
			"CollectionsContainer": [[
				{"PointName": "LE-2", "AlarmCodeMessage": "Badge accepté", "DateTime1": "/Date(1719830500000+0200)/"},
				{"PointName": "LE-1", "AlarmCodeMessage": "Badge accepté", "DateTime1": "/Date(1719830400000+0200)/"}
			]],
			"TotalNumber": 2,
			"OperationResult": {"Status": "OK"}
		}`))
	}))
	defer server.Close()

	client := NewAlwinClient(testAlwinConfig(server.URL))
	events, err := client.FetchAccessEvents(context.Background())
	if err != nil {
		t.Fatalf("FetchAccessEvents() error: %v", err)
	}

	if gotPath != "/getlogaccess" {
		t.Errorf("path = %q, want /getlogaccess", gotPath)
	}
	if gotAPIKey != "key-123" {
		t.Errorf("X-API-KEY = %q", gotAPIKey)
	}
	if gotUser != "svc" || gotPass != "secret" {
		t.Errorf("basic auth = %q/%q", gotUser, gotPass)
	}

	// Reversed to oldest-first.
	if len(events) != 2 || events[0].PointName != "LE-1" || events[1].PointName != "LE-2" {
		t.Fatalf("events = %+v, want LE-1 then LE-2", events)
	}
	if events[0].OccurredAt == nil || events[0].OccurredAt.UnixMilli() != 1719830400000 {
		t.Errorf("OccurredAt = %v, want 1719830400000", events[0].OccurredAt)
	}
	if events[0].CompanyName != "Unknown" {
		t.Errorf("CompanyName = %q, want Unknown default", events[0].CompanyName)
	}
}

func TestFetchAlarmEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getlogalarm" {
			t.Errorf("path = %q, want /getlogalarm", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"CollectionsContainer": [[
				{"PointName": "UTL-4", "AlarmID": 991, "AlarmCode": "AL_INTRU", "AlarmCodeMessage": "Intrusion", "DateTime1": "/Date(1719830400000)/"}
			]],
			"OperationResult": {"Status": "OK"}
		}`))
	}))
	defer server.Close()

	client := NewAlwinClient(testAlwinConfig(server.URL))
	events, err := client.FetchAlarmEvents(context.Background())
	if err != nil {
		t.Fatalf("FetchAlarmEvents() error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].AlarmID != 991 || events[0].AlarmCode != "AL_INTRU" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestFetchServerErrorIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewAlwinClient(testAlwinConfig(server.URL))
	if _, err := client.FetchAccessEvents(context.Background()); !errors.Is(err, ErrUpstream) {
		t.Fatalf("FetchAccessEvents() error = %v, want ErrUpstream", err)
	}
}

func TestFetchOperationResultFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"CollectionsContainer": [], "OperationResult": {"Status": "ERROR", "Message": "invalid key"}}`))
	}))
	defer server.Close()

	client := NewAlwinClient(testAlwinConfig(server.URL))
	if _, err := client.FetchAccessEvents(context.Background()); !errors.Is(err, ErrUpstream) {
		t.Fatalf("FetchAccessEvents() error = %v, want ErrUpstream on status ERROR", err)
	}
}

func TestFetchConnectionRefusedIsUpstream(t *testing.T) {
	client := NewAlwinClient(testAlwinConfig("http://127.0.0.1:1"))
	if _, err := client.FetchAlarmEvents(context.Background()); !errors.Is(err, ErrUpstream) {
		t.Fatalf("FetchAlarmEvents() error = %v, want ErrUpstream", err)
	}
}
