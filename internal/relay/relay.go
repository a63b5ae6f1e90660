// Package relay defines the JSON messages exchanged with the matchmaking
// relay and converts their move payloads to and from board moves.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types
const (
	TypeFindGame             = "find_game"
	TypeCancelSearch         = "cancel_search"
	TypeDisconnect           = "disconnect"
	TypeWaiting              = "waiting"
	TypeGameFound            = "game_found"
	TypeMakeMove             = "make_move"
	TypeMoveReceived         = "move_received"
	TypeOpponentDisconnected = "opponent_disconnected"
)

var knownTypes = map[string]bool{
	TypeFindGame:             true,
	TypeCancelSearch:         true,
	TypeDisconnect:           true,
	TypeWaiting:              true,
	TypeGameFound:            true,
	TypeMakeMove:             true,
	TypeMoveReceived:         true,
	TypeOpponentDisconnected: true,
}

// ErrUnknownType is returned when decoding a message of an unknown type.
var ErrUnknownType = errors.New("unknown message type")

// Message is a relay message. Only the fields of its Type are set.
type Message struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId,omitempty"`
	PlayerID    int    `json:"playerId,omitempty"`
	OpponentID  int    `json:"opponentId,omitempty"`
	Color       string `json:"color,omitempty"`       // game_found: "w" or "b"
	CurrentTurn string `json:"currentTurn,omitempty"` // move_received
	Move        *Move  `json:"move,omitempty"`
}

// FindGame asks the relay to queue the player.
func FindGame() Message {
	return Message{Type: TypeFindGame}
}

// CancelSearch leaves the queue.
func CancelSearch() Message {
	return Message{Type: TypeCancelSearch}
}

// MakeMove sends a move to the opponent in a room.
func MakeMove(roomID string, playerID int, m Move) Message {
	return Message{Type: TypeMakeMove, RoomID: roomID, PlayerID: playerID, Move: &m}
}

// Encode serializes a message.
func Encode(m Message) ([]byte, error) {
	if !knownTypes[m.Type] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	return json.Marshal(m)
}

// Decode parses a message and checks the fields its type requires.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode relay message: %w", err)
	}
	if !knownTypes[m.Type] {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}

	switch m.Type {
	case TypeGameFound:
		if m.RoomID == "" {
			return Message{}, errors.New("game_found without roomId")
		}
		if m.Color != "w" && m.Color != "b" {
			return Message{}, fmt.Errorf("game_found with invalid color %q", m.Color)
		}
	case TypeMakeMove, TypeMoveReceived:
		if m.Move == nil {
			return Message{}, fmt.Errorf("%s without move", m.Type)
		}
		if err := m.Move.Validate(); err != nil {
			return Message{}, err
		}
	}
	return m, nil
}
