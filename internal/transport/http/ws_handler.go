package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"trivia-room-service/internal/app"
)

// WSHandler upgrades HTTP requests to websockets and translates the event
// envelope into game-service operations.
type WSHandler struct {
	service  *app.GameService
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, hub *Hub) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type client struct {
	id   string
	send chan app.Event

	// Written only by the connection's own read loop.
	roomCode string
	userID   string
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createRoomPayload struct {
	Name string `json:"name"`
	Set  string `json:"set"`
}

type joinRoomPayload struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
}

type roomCodePayload struct {
	RoomCode string `json:"roomCode"`
}

type submitAnswerPayload struct {
	RoomCode    string `json:"roomCode"`
	UserID      string `json:"userId"`
	AnswerIndex int    `json:"answerIndex"`
}

type rejoinPayload struct {
	RoomCode string `json:"roomCode"`
	UserID   string `json:"userId"`
}

type roomAckPayload struct {
	RoomCode string `json:"roomCode"`
	UserID   string `json:"userId"`
}

type rosterPayload struct {
	Players []string `json:"players"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS runs one connection: a write pump plus a read loop dispatching
// the inbound event table.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := &client{id: newConnID(), send: make(chan app.Event, 16)}
	h.hub.add(c)
	defer h.hub.remove(c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r, c, inbound)
	}

	// Connection gone: detach but keep membership so the user can rejoin.
	if c.roomCode != "" && c.userID != "" {
		h.service.Detach(c.roomCode, c.userID, c.id)
	}

	h.hub.remove(c)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, c *client, inbound inboundMessage) {
	switch inbound.Type {
	case "create_room":
		var p createRoomPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.Name == "" {
			h.hub.Send(c.id, app.Event{Type: "error", Payload: errorPayload{Message: "invalid create_room payload"}})
			return
		}
		code, userID, err := h.service.CreateRoom(r.Context(), c.id, p.Name, p.Set)
		if err != nil {
			h.hub.Send(c.id, app.Event{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
		c.roomCode, c.userID = code, userID
		h.hub.Send(c.id, app.Event{Type: "room_created", Payload: roomAckPayload{RoomCode: code, UserID: userID}})
		log.Printf("room %s created by %s", code, p.Name)

	case "join_room":
		var p joinRoomPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.Name == "" {
			h.hub.Send(c.id, app.Event{Type: "join_error", Payload: errorPayload{Message: "invalid join_room payload"}})
			return
		}
		userID, players, hostConnID, err := h.service.Join(p.RoomCode, p.Name, c.id)
		if err != nil {
			h.hub.Send(c.id, app.Event{Type: "join_error", Payload: errorPayload{Message: err.Error()}})
			return
		}
		c.roomCode, c.userID = p.RoomCode, userID
		h.hub.Send(c.id, app.Event{Type: "room_joined", Payload: roomAckPayload{RoomCode: p.RoomCode, UserID: userID}})
		h.hub.Send(hostConnID, app.Event{Type: "player_joined", Payload: rosterPayload{Players: players}})
		log.Printf("%s joined room %s", p.Name, p.RoomCode)

	case "start_quiz":
		var p roomCodePayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			h.hub.Send(c.id, app.Event{Type: "error", Payload: errorPayload{Message: "invalid start_quiz payload"}})
			return
		}
		if h.service.Start(p.RoomCode) {
			h.hub.Send(c.id, app.Event{Type: "quiz_started", Payload: struct{}{}})
			log.Printf("quiz started in room %s", p.RoomCode)
		} else {
			log.Printf("cannot start quiz for room %s: not found or already started", p.RoomCode)
		}

	case "submit_answer":
		var p submitAnswerPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			h.hub.Send(c.id, app.Event{Type: "error", Payload: errorPayload{Message: "invalid submit_answer payload"}})
			return
		}
		// The room acks accepted submissions itself; rejections stay silent.
		if err := h.service.SubmitAnswer(p.RoomCode, p.UserID, p.AnswerIndex); err != nil {
			log.Printf("submit_answer rejected for room %s: %v", p.RoomCode, err)
		}

	case "get_players":
		var p roomCodePayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			h.hub.Send(c.id, app.Event{Type: "error", Payload: errorPayload{Message: "invalid get_players payload"}})
			return
		}
		h.hub.Send(c.id, app.Event{Type: "players_list", Payload: rosterPayload{Players: h.service.PlayerNames(p.RoomCode)}})

	case "rejoin_room":
		var p rejoinPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			h.hub.Send(c.id, app.Event{Type: "error", Payload: errorPayload{Message: "invalid rejoin_room payload"}})
			return
		}
		if err := h.service.Rejoin(p.RoomCode, p.UserID, c.id); err != nil {
			log.Printf("rejoin rejected for room %s user %s: %v", p.RoomCode, p.UserID, err)
			return
		}
		c.roomCode, c.userID = p.RoomCode, p.UserID
		log.Printf("user %s rejoined room %s", p.UserID, p.RoomCode)

	default:
		h.hub.Send(c.id, app.Event{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
	}
}

func newConnID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
