package protocol

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	_ encoding.BinaryMarshaler   = Message{}
	_ encoding.BinaryUnmarshaler = (*Message)(nil)
)

// MarshalBinary lays the message out as one complete frame.
func (m Message) MarshalBinary() ([]byte, error) {
	buf := bytes.Buffer{}
	buf.WriteByte(byte(m.Kind))

	switch m.Kind {
	case KindJoin, KindPlayerLeft:
		if err := writeField(&buf, m.Name); err != nil {
			return nil, err
		}
	case KindChat:
		if err := writeField(&buf, m.Text); err != nil {
			return nil, err
		}
	case KindWorld:
		if len(m.Text) > WorldSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrWorldTooLarge, len(m.Text))
		}
		if strings.HasSuffix(m.Text, string(worldPad)) {
			return nil, ErrWorldPadding
		}
		buf.WriteString(m.Text)
		buf.Write(bytes.Repeat([]byte{worldPad}, WorldSize-len(m.Text)))
	case KindStatus:
		buf.WriteByte(byte(m.Status))
	case KindPlayerJoined:
		if err := writeField(&buf, m.Name); err != nil {
			return nil, err
		}
		buf.WriteByte(m.Row)
		buf.WriteByte(m.Col)
	case KindMove, KindInteract:
		if !m.Dir.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrProtocolViolation, m.Dir)
		}
		if err := writeField(&buf, m.Name); err != nil {
			return nil, err
		}
		buf.WriteByte('0' + byte(m.Dir))
	case KindKey:
		buf.WriteByte(m.Row)
		buf.WriteByte(m.Col)
	default:
		return nil, fmt.Errorf("%w: unknown %s", ErrProtocolViolation, m.Kind)
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary decodes exactly one frame from data.
func (m *Message) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	msg, err := Decode(r)
	if err != nil {
		return err
	}
	if r.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes after %s", ErrProtocolViolation, r.Len(), msg.Kind)
	}
	*m = msg
	return nil
}

func writeField(buf *bytes.Buffer, s string) error {
	if len(s) > MaxFieldLen {
		return fmt.Errorf("%w: %d bytes", ErrFieldTooLong, len(s))
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

// Encode writes m to w as a single frame. Short writes are retried until the
// frame is flushed; a write that makes no progress fails with
// ErrConnectionBroken.
func Encode(w io.Writer, m Message) error {
	frame, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	return writeFull(w, frame)
}

func writeFull(w io.Writer, frame []byte) error {
	for sent := 0; sent < len(frame); {
		n, err := w.Write(frame[sent:])
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConnectionBroken, err)
		}
		if n == 0 {
			return ErrConnectionBroken
		}
		sent += n
	}
	return nil
}

// Decode reads one frame from r. Any read failure, including a peer that
// closes mid-frame, fails with ErrConnectionBroken. When the peer closed
// before the kind byte the error also matches io.EOF.
func Decode(r io.Reader) (Message, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = byteReader{r}
	}
	kindByte, err := br.ReadByte()
	if err != nil {
		return Message{}, broken(err)
	}

	m := Message{Kind: Kind(kindByte)}
	switch m.Kind {
	case KindJoin, KindPlayerLeft:
		m.Name, err = readField(r, br)
	case KindChat:
		m.Text, err = readField(r, br)
	case KindWorld:
		var raw []byte
		raw, err = readN(r, WorldSize)
		m.Text = strings.TrimRight(string(raw), string(worldPad))
	case KindStatus:
		var b byte
		b, err = readByte(br)
		m.Status = Status(b)
	case KindPlayerJoined:
		if m.Name, err = readField(r, br); err != nil {
			break
		}
		if m.Row, err = readByte(br); err != nil {
			break
		}
		m.Col, err = readByte(br)
	case KindMove, KindInteract:
		if m.Name, err = readField(r, br); err != nil {
			break
		}
		var b byte
		if b, err = readByte(br); err != nil {
			break
		}
		if b < '0' || b > '3' {
			return Message{}, fmt.Errorf("%w: direction byte %#02x", ErrProtocolViolation, b)
		}
		m.Dir = Direction(b - '0')
	case KindKey:
		if m.Row, err = readByte(br); err != nil {
			break
		}
		m.Col, err = readByte(br)
	default:
		return Message{}, fmt.Errorf("%w: unknown %s", ErrProtocolViolation, m.Kind)
	}
	if err != nil {
		return Message{}, err
	}
	return m, nil
}

func broken(err error) error {
	if errors.Is(err, ErrConnectionBroken) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConnectionBroken, err)
}

func readByte(br io.ByteReader) (byte, error) {
	b, err := br.ReadByte()
	if err != nil {
		return 0, broken(midFrame(err))
	}
	return b, nil
}

func readField(r io.Reader, br io.ByteReader) (string, error) {
	n, err := readByte(br)
	if err != nil {
		return "", err
	}
	raw, err := readN(r, int(n))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func readN(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, broken(midFrame(err))
	}
	return buf, nil
}

// byteReader reads single bytes straight from the underlying reader so no
// bytes are buffered past the end of a frame.
type byteReader struct{ r io.Reader }

func (b byteReader) ReadByte() (byte, error) {
	var one [1]byte
	if _, err := io.ReadFull(b.r, one[:]); err != nil {
		return 0, err
	}
	return one[0], nil
}

// midFrame keeps an EOF inside a frame from looking like an orderly close.
func midFrame(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
