package protocol

import (
	"errors"
	"fmt"
)

// Protocol-related errors.
var (
	ErrConnectionBroken  = errors.New("socket connection broken")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrFieldTooLong      = errors.New("field exceeds 255 bytes")
	ErrWorldTooLarge     = errors.New("world snapshot exceeds fixed size")
	ErrWorldPadding      = errors.New("world snapshot ends in padding")
)

// Kind is the one-byte tag selecting the shape of a frame.
type Kind byte

// Message kinds.
const (
	KindJoin         Kind = 'j' // name
	KindWorld        Kind = 'w' // fixed-size maze text
	KindStatus       Kind = 's' // status byte
	KindChat         Kind = 'M' // text
	KindPlayerJoined Kind = 'n' // name, row, col
	KindMove         Kind = 'm' // name, direction
	KindPlayerLeft   Kind = 'd' // name
	KindKey          Kind = 'k' // row, col
	KindInteract     Kind = 'a' // name, direction (reserved)
)

func (k Kind) String() string {
	switch k {
	case KindJoin:
		return "join"
	case KindWorld:
		return "world"
	case KindStatus:
		return "status"
	case KindChat:
		return "chat"
	case KindPlayerJoined:
		return "player-joined"
	case KindMove:
		return "move"
	case KindPlayerLeft:
		return "player-left"
	case KindKey:
		return "key"
	case KindInteract:
		return "interact"
	}
	return fmt.Sprintf("kind(%#02x)", byte(k))
}

// Status is the single ASCII byte carried by a status frame.
type Status byte

const (
	StatusNameTaken   Status = 'T'
	StatusIllegalMove Status = 'I'
	StatusWon         Status = 'W'
)

// Direction of a move. Values match the digits carried on the wire.
type Direction uint8

const (
	Up Direction = iota
	Right
	Down
	Left
)

func (d Direction) Valid() bool { return d <= Left }

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

const (
	// WorldSize is the exact payload length of a world frame.
	WorldSize = 2014

	// MaxFieldLen is the largest length-prefixed field.
	MaxFieldLen = 255

	worldPad = ' '
)

// Message is one frame. Only the fields belonging to Kind are meaningful:
//
//	j, d      Name
//	w, M      Text
//	s         Status
//	n         Name, Row, Col
//	m, a      Name, Dir
//	k         Row, Col
type Message struct {
	Kind   Kind
	Name   string
	Text   string
	Status Status
	Dir    Direction
	Row    uint8
	Col    uint8
}

// Join builds a join request.
func Join(name string) Message { return Message{Kind: KindJoin, Name: name} }

// World builds a maze snapshot frame. The payload is padded with spaces to
// WorldSize and the padding is trimmed on decode, so maze must not end in a
// space.
func World(maze string) Message { return Message{Kind: KindWorld, Text: maze} }

// StatusOf builds a status frame.
func StatusOf(s Status) Message { return Message{Kind: KindStatus, Status: s} }

// Chat builds a chat frame.
func Chat(text string) Message { return Message{Kind: KindChat, Text: text} }

// PlayerJoined builds a player-joined frame.
func PlayerJoined(name string, row, col uint8) Message {
	return Message{Kind: KindPlayerJoined, Name: name, Row: row, Col: col}
}

// Move builds a move request or broadcast.
func Move(name string, dir Direction) Message {
	return Message{Kind: KindMove, Name: name, Dir: dir}
}

// PlayerLeft builds a player-left frame.
func PlayerLeft(name string) Message { return Message{Kind: KindPlayerLeft, Name: name} }

// Key builds a key toggle frame.
func Key(row, col uint8) Message { return Message{Kind: KindKey, Row: row, Col: col} }

func (m Message) String() string {
	switch m.Kind {
	case KindJoin, KindPlayerLeft:
		return fmt.Sprintf("%s(%q)", m.Kind, m.Name)
	case KindWorld:
		return fmt.Sprintf("%s(%d bytes)", m.Kind, len(m.Text))
	case KindStatus:
		return fmt.Sprintf("%s(%c)", m.Kind, m.Status)
	case KindChat:
		return fmt.Sprintf("%s(%q)", m.Kind, m.Text)
	case KindPlayerJoined:
		return fmt.Sprintf("%s(%q, %d, %d)", m.Kind, m.Name, m.Row, m.Col)
	case KindMove, KindInteract:
		return fmt.Sprintf("%s(%q, %s)", m.Kind, m.Name, m.Dir)
	case KindKey:
		return fmt.Sprintf("%s(%d, %d)", m.Kind, m.Row, m.Col)
	}
	return m.Kind.String()
}

// Truncate shortens s to at most MaxFieldLen bytes without splitting a rune.
func Truncate(s string) string {
	if len(s) <= MaxFieldLen {
		return s
	}
	cut := MaxFieldLen
	// step back over continuation bytes
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
