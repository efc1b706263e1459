// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/PraetorAI/PraetorLocal/pkg/logging"
	"github.com/PraetorAI/PraetorLocal/services/counsel/connectivity"
	"github.com/PraetorAI/PraetorLocal/services/counsel/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Local single-user service; the UI is served from the same
		// host.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

const (
	streamBuffer  = 64
	writeDeadline = 10 * time.Second
)

// streamedTypes are the bus events pushed to connected UIs.
var streamedTypes = []events.Type{
	events.TypeConnectivityChanged,
	events.TypeOutboxEnqueued,
	events.TypeOutboxRemoved,
	events.TypeOutboxFlushed,
	events.TypeRunUpdated,
	events.TypeNotification,
}

// StreamEvents upgrades the connection to a websocket and pushes
// status events (connectivity, outbox, run updates, notifications)
// until the client disconnects. A slow client drops events rather
// than stalling bus publishers.
func StreamEvents(bus *events.Bus, monitor *connectivity.Monitor, log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error("websocket upgrade failed", "error", err)
			return
		}
		defer ws.Close()
		log.Debug("stream client connected", "remote", c.Request.RemoteAddr)

		// Bus handlers run on the publisher's goroutine, so the
		// handler only buffers; the write loop below owns the socket.
		queue := make(chan events.Event, streamBuffer)
		subID := bus.Subscribe(func(event *events.Event) {
			select {
			case queue <- *event:
			default:
				log.Warn("stream client too slow, dropping event", "type", event.Type)
			}
		}, streamedTypes...)
		defer bus.Unsubscribe(subID)

		// Initial snapshot so the UI renders state before the first
		// transition.
		hello := events.Event{
			Type:      events.TypeConnectivityChanged,
			Timestamp: time.Now(),
			Data:      events.ConnectivityData{Online: monitor.Online()},
		}
		if err := writeEvent(ws, hello); err != nil {
			return
		}

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				log.Debug("stream client disconnected", "remote", c.Request.RemoteAddr)
				return
			case event := <-queue:
				if err := writeEvent(ws, event); err != nil {
					log.Debug("stream write failed", "error", err)
					return
				}
			}
		}
	}
}

func writeEvent(ws *websocket.Conn, event events.Event) error {
	if err := ws.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return err
	}
	return ws.WriteJSON(event)
}
