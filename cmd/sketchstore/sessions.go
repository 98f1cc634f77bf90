package main

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/sketchstore/internal/app"
)

// sessionStore holds active ClientSession objects for push notifications.
type sessionStore struct {
	mu   sync.RWMutex
	data map[string]server.ClientSession
}

func newSessionStore() *sessionStore {
	return &sessionStore{data: make(map[string]server.ClientSession)}
}

func (ss *sessionStore) set(id string, s server.ClientSession) {
	ss.mu.Lock()
	ss.data[id] = s
	ss.mu.Unlock()
}

func (ss *sessionStore) remove(id string) {
	ss.mu.Lock()
	delete(ss.data, id)
	ss.mu.Unlock()
}

func (ss *sessionStore) snapshot() []server.ClientSession {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	out := make([]server.ClientSession, 0, len(ss.data))
	for _, s := range ss.data {
		out = append(out, s)
	}
	return out
}

// push returns an app.PushFunc that sends the notification to every
// initialized session. A full channel drops the notification for that session.
func (ss *sessionStore) push(logger *log.Logger) app.PushFunc {
	return func(method string, params any) error {
		fields, err := toFields(params)
		if err != nil {
			return err
		}
		notification := mcp.JSONRPCNotification{
			JSONRPC: mcp.JSONRPC_VERSION,
			Notification: mcp.Notification{
				Method: method,
				Params: mcp.NotificationParams{AdditionalFields: fields},
			},
		}
		for _, session := range ss.snapshot() {
			if !session.Initialized() {
				continue
			}
			select {
			case session.NotificationChannel() <- notification:
			default:
				logger.Printf("Notifier: push to %s dropped (channel full)", session.SessionID())
			}
		}
		return nil
	}
}

func toFields(params any) (map[string]any, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode notification params: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("notification params must be an object: %w", err)
	}
	return fields, nil
}
