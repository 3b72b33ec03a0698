package mqtt

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/harveysanders/picolcd/lcd"
)

func TestPayload(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b, err := Payload(Event{Menu: "Settings", Item: "Save", Values: map[string]string{"contrast": "3"}, At: at})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got["menu"] != "Settings" || got["item"] != "Save" || got["at"] != "2024-05-01T12:00:00Z" {
		t.Errorf("payload %s", b)
	}
	if v, _ := got["values"].(map[string]any); v["contrast"] != "3" {
		t.Errorf("values %v", got["values"])
	}
}

func TestConnectAndPublishValidates(t *testing.T) {
	dial := func() (Conn, error) { return nil, errors.New("unreachable") }
	if err := (&Client{Topic: "t"}).ConnectAndPublish(dial, nil, nil); !errors.Is(err, ErrNoID) {
		t.Errorf("got %v, want ErrNoID", err)
	}
	if err := (&Client{ID: "x"}).ConnectAndPublish(dial, nil, nil); !errors.Is(err, ErrNoTopic) {
		t.Errorf("got %v, want ErrNoTopic", err)
	}
}

func TestConnectAndPublishStopsWhileOffline(t *testing.T) {
	dials := 0
	dial := func() (Conn, error) {
		dials++
		return nil, errors.New("unreachable")
	}
	events := make(chan Event)
	close(events)
	msgs := make(chan lcd.Message, 10)
	c := &Client{ID: "x", Topic: "t", RetryDelay: time.Millisecond}
	if err := c.ConnectAndPublish(dial, events, msgs); err != nil {
		t.Fatal(err)
	}
	if dials != 0 {
		t.Errorf("dialed %d times with no events left", dials)
	}
}

// readPacket reads one MQTT control packet: the first header byte and the
// body after the remaining-length varint.
func readPacket(r io.Reader) (byte, []byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, nil, err
	}
	hdr := b[0]
	n, mul := 0, 1
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, nil, err
		}
		n += int(b[0]&0x7F) * mul
		if b[0]&0x80 == 0 {
			break
		}
		mul *= 128
	}
	body := make([]byte, n)
	_, err := io.ReadFull(r, body)
	return hdr, body, err
}

type published struct {
	topic   string
	payload []byte
}

// broker accepts one CONNECT and forwards QoS0 PUBLISH packets.
func broker(t *testing.T, conn net.Conn, out chan<- published) {
	defer close(out)
	hdr, _, err := readPacket(conn)
	if err != nil || hdr>>4 != 1 {
		t.Errorf("expected CONNECT, got %#x %v", hdr, err)
		return
	}
	if _, err := conn.Write([]byte{0x20, 0x02, 0x00, 0x00}); err != nil {
		t.Errorf("CONNACK: %v", err)
		return
	}
	for {
		hdr, body, err := readPacket(conn)
		if err != nil {
			return
		}
		if hdr>>4 != 3 {
			continue
		}
		n := int(binary.BigEndian.Uint16(body))
		out <- published{topic: string(body[2 : 2+n]), payload: body[2+n:]}
	}
}

func TestConnectAndPublish(t *testing.T) {
	client, server := net.Pipe()
	got := make(chan published, 4)
	go broker(t, server, got)

	dial := func() (Conn, error) { return client, nil }
	events := make(chan Event, 1)
	events <- Event{Menu: "root", Item: "Save"}
	msgs := make(chan lcd.Message, 16)

	c := &Client{ID: "picolcd-test", Topic: "lcd/events", Timeout: 2 * time.Second}
	done := make(chan error)
	go func() { done <- c.ConnectAndPublish(dial, events, msgs) }()

	select {
	case p := <-got:
		if p.topic != "lcd/events" {
			t.Errorf("topic %q", p.topic)
		}
		var ev Event
		if err := json.Unmarshal(p.payload, &ev); err != nil || ev.Item != "Save" {
			t.Errorf("payload %s: %v", p.payload, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no publish received")
	}

	close(events)
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ConnectAndPublish did not return")
	}

	var sawConnected bool
	for len(msgs) > 0 {
		if m := <-msgs; string(m.Line1) == "MQTT Connected" {
			sawConnected = true
		}
	}
	if !sawConnected {
		t.Error("no connected status sent to the LCD")
	}
}
