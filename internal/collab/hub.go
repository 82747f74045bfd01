// Package collab holds the live editing rooms. Rooms are in-memory only:
// a room appears when the first participant joins an article and vanishes,
// buffer included, when the last one leaves.
package collab

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"inkwell/api/internal/store"
)

// Event is the wire envelope exchanged with collaboration clients.
type Event struct {
	Type       string          `json:"type"`
	ArticleID  string          `json:"articleId,omitempty"`
	SenderID   string          `json:"senderId,omitempty"`
	SenderName string          `json:"senderName,omitempty"`
	Content    string          `json:"content,omitempty"`
	Cursor     json.RawMessage `json:"cursor,omitempty"`
	Message    string          `json:"message,omitempty"`
	MessageID  int64           `json:"messageId,omitempty"`
	CreatedAt  string          `json:"createdAt,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Client-to-server event types.
const (
	EventJoinDocument = "joinDocument"
	EventEditContent  = "editContent"
	EventMoveCursor   = "moveCursor"
	EventSendMessage  = "sendMessage"
	EventLeaveRoom    = "leaveRoom"
)

// Server-to-client event types.
const (
	EventUpdateContent  = "updateContent"
	EventUpdateCursor   = "updateCursor"
	EventReceiveMessage = "receiveMessage"
	EventError          = "error"
)

// Participant is one connected peer. Send must not block; a failed send
// affects only that peer.
type Participant interface {
	ID() string
	Send(Event) error
}

// MessageStore persists chat messages. Satisfied by app.Service.
type MessageStore interface {
	SendChatMessage(ctx context.Context, articleID, senderID, body string) (store.ChatMessage, error)
}

type room struct {
	participants map[string]Participant
	cursors      map[string]json.RawMessage
	buffer       string
	hasBuffer    bool
}

type Hub struct {
	mu       sync.Mutex
	rooms    map[string]*room
	messages MessageStore
}

func NewHub(messages MessageStore) *Hub {
	return &Hub{
		rooms:    make(map[string]*room),
		messages: messages,
	}
}

// Join adds a participant to an article's room, creating the room on first
// join. If the room holds unsaved content the joiner receives it immediately
// so everyone edits the same state.
func (h *Hub) Join(articleID string, p Participant) {
	h.mu.Lock()
	rm, ok := h.rooms[articleID]
	if !ok {
		rm = &room{
			participants: make(map[string]Participant),
			cursors:      make(map[string]json.RawMessage),
		}
		h.rooms[articleID] = rm
	}
	rm.participants[p.ID()] = p
	replay := rm.hasBuffer
	content := rm.buffer
	cursors := make(map[string]json.RawMessage, len(rm.cursors))
	for id, cur := range rm.cursors {
		cursors[id] = cur
	}
	h.mu.Unlock()

	if replay {
		h.deliver(p, Event{Type: EventUpdateContent, ArticleID: articleID, Content: content})
	}
	for senderID, cursor := range cursors {
		h.deliver(p, Event{Type: EventUpdateCursor, ArticleID: articleID, SenderID: senderID, Cursor: cursor})
	}
}

// Edit replaces the room buffer and relays the new content to everyone but
// the sender. Last write wins; concurrent edits are not merged.
func (h *Hub) Edit(articleID, senderID, content string) {
	h.mu.Lock()
	rm, ok := h.rooms[articleID]
	if !ok {
		h.mu.Unlock()
		return
	}
	rm.buffer = content
	rm.hasBuffer = true
	peers := rm.peersExcept(senderID)
	h.mu.Unlock()

	ev := Event{Type: EventUpdateContent, ArticleID: articleID, SenderID: senderID, Content: content}
	for _, p := range peers {
		h.deliver(p, ev)
	}
}

// MoveCursor relays a cursor position to everyone but the sender. Positions
// are kept only for replay to late joiners, never persisted.
func (h *Hub) MoveCursor(articleID, senderID string, cursor json.RawMessage) {
	h.mu.Lock()
	rm, ok := h.rooms[articleID]
	if !ok {
		h.mu.Unlock()
		return
	}
	rm.cursors[senderID] = cursor
	peers := rm.peersExcept(senderID)
	h.mu.Unlock()

	ev := Event{Type: EventUpdateCursor, ArticleID: articleID, SenderID: senderID, Cursor: cursor}
	for _, p := range peers {
		h.deliver(p, ev)
	}
}

// SendMessage persists the chat message, then broadcasts the stored row to
// the whole room including the sender. If persistence fails only the sender
// hears about it and nothing is broadcast. connID identifies the sending
// participant in the room; userID is the account the message is stored under.
func (h *Hub) SendMessage(ctx context.Context, articleID, connID, userID, body string) {
	msg, err := h.messages.SendChatMessage(ctx, articleID, userID, body)
	if err != nil {
		log.Printf("collab: persist chat message for %s: %v", articleID, err)
		h.mu.Lock()
		rm, ok := h.rooms[articleID]
		var sender Participant
		if ok {
			sender = rm.participants[connID]
		}
		h.mu.Unlock()
		if sender != nil {
			h.deliver(sender, Event{Type: EventError, ArticleID: articleID, Error: "message could not be saved"})
		}
		return
	}

	h.mu.Lock()
	rm, ok := h.rooms[articleID]
	if !ok {
		h.mu.Unlock()
		return
	}
	peers := rm.peersExcept("")
	h.mu.Unlock()

	ev := Event{
		Type:       EventReceiveMessage,
		ArticleID:  articleID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Message:    msg.Body,
		MessageID:  msg.ID,
		CreatedAt:  msg.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, p := range peers {
		h.deliver(p, ev)
	}
}

// Leave removes a participant from one room, tearing the room down when it
// empties. The buffer is discarded, not flushed: saving is an explicit act.
func (h *Hub) Leave(articleID, participantID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(articleID, participantID)
}

// Disconnect removes a participant from every room. Called when the
// underlying connection drops without an explicit leave.
func (h *Hub) Disconnect(participantID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for articleID := range h.rooms {
		h.leaveLocked(articleID, participantID)
	}
}

func (h *Hub) leaveLocked(articleID, participantID string) {
	rm, ok := h.rooms[articleID]
	if !ok {
		return
	}
	delete(rm.participants, participantID)
	delete(rm.cursors, participantID)
	if len(rm.participants) == 0 {
		delete(h.rooms, articleID)
	}
}

// RoomSize reports the number of participants in an article's room.
func (h *Hub) RoomSize(articleID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[articleID]
	if !ok {
		return 0
	}
	return len(rm.participants)
}

func (r *room) peersExcept(senderID string) []Participant {
	peers := make([]Participant, 0, len(r.participants))
	for id, p := range r.participants {
		if senderID != "" && id == senderID {
			continue
		}
		peers = append(peers, p)
	}
	return peers
}

func (h *Hub) deliver(p Participant, ev Event) {
	if err := p.Send(ev); err != nil {
		log.Printf("collab: send %s to %s dropped: %v", ev.Type, p.ID(), err)
	}
}
