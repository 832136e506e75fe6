package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// HistoryLimit is the number of messages retained per room
	HistoryLimit = 100

	// SystemUser is the sender name on join and leave notices
	SystemUser = "system"
)

// Message is a single chat message as stored and broadcast
type Message struct {
	User string    `json:"user"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// Frame is the envelope written to clients. History frames carry the room
// backlog on join; message frames carry one live message.
type Frame struct {
	Type     string    `json:"type"`
	Message  *Message  `json:"message,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

const (
	FrameMessage = "message"
	FrameHistory = "history"
)

type inbound struct {
	client  *Client
	message Message
}

// Hub routes messages between clients grouped into rooms. All room state is
// owned by the Run goroutine; other goroutines talk to it over channels.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	incoming   chan inbound

	// done is closed when Run exits so clients never block handing
	// themselves to a stopped hub
	done chan struct{}

	rooms   map[string]map[*Client]bool
	history map[string][]Message

	logger *zap.Logger
}

// NewHub creates a hub. Call Run before registering clients.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan inbound, 64),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Client]bool),
		history:    make(map[string][]Message),
		logger:     logger,
	}
}

// Run processes hub events until the context is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case in := <-h.incoming:
			h.broadcast(in.client.room, in.message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	room := h.rooms[client.room]
	if room == nil {
		room = make(map[*Client]bool)
		h.rooms[client.room] = room
	}
	room[client] = true

	// Replay the backlog to the new client only
	if backlog := h.history[client.room]; len(backlog) > 0 {
		client.enqueue(Frame{Type: FrameHistory, Messages: backlog})
	}

	notice := Message{
		User: SystemUser,
		Text: fmt.Sprintf("%s joined the room", client.username),
		Time: time.Now().UTC(),
	}
	h.save(client.room, notice)
	h.broadcastExcept(client.room, notice, client)

	h.logger.Info("chat_client_joined",
		zap.String("room", client.room),
		zap.String("username", client.username),
		zap.Int("room_size", len(room)),
	)
}

func (h *Hub) removeClient(client *Client) {
	room := h.rooms[client.room]
	if room == nil || !room[client] {
		return
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.rooms, client.room)
	}

	notice := Message{
		User: SystemUser,
		Text: fmt.Sprintf("%s left the room", client.username),
		Time: time.Now().UTC(),
	}
	h.save(client.room, notice)
	h.broadcast(client.room, notice)

	h.logger.Info("chat_client_left",
		zap.String("room", client.room),
		zap.String("username", client.username),
	)
}

// broadcast saves the message and delivers it to every client in the room,
// including the sender
func (h *Hub) broadcast(room string, msg Message) {
	h.save(room, msg)
	frame := Frame{Type: FrameMessage, Message: &msg}
	for client := range h.rooms[room] {
		client.enqueue(frame)
	}
}

func (h *Hub) broadcastExcept(room string, msg Message, except *Client) {
	frame := Frame{Type: FrameMessage, Message: &msg}
	for client := range h.rooms[room] {
		if client == except {
			continue
		}
		client.enqueue(frame)
	}
}

func (h *Hub) save(room string, msg Message) {
	backlog := append(h.history[room], msg)
	if len(backlog) > HistoryLimit {
		backlog = backlog[len(backlog)-HistoryLimit:]
	}
	h.history[room] = backlog
}

func (h *Hub) closeAll() {
	for room, clients := range h.rooms {
		for client := range clients {
			close(client.send)
		}
		delete(h.rooms, room)
	}
}

func encodeFrame(frame Frame) ([]byte, error) {
	return json.Marshal(frame)
}
