package metricviz

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func newTestServer(t *testing.T) (*HttpServer, *httptest.Server) {
	t.Helper()

	reader := &testMetricRowReader{}
	for _, row := range testRows() {
		reader.items = append(reader.items, row)
	}
	b := NewBroadcaster(reader, 100, nil)
	b.Start(context.Background())
	b.Wait()

	metadata := RunMetadata{
		Name:    "dqn_cartpole",
		Trial:   0,
		Session: 1,
		PlotOptions: PlotOptions{
			Columns: []string{"loss"},
			XLabel:  "total_t",
		},
	}
	s := NewHttpServer(b, "localhost:0", metadata)
	ts := httptest.NewServer(s.mux)
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHttpServerMetadata(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metadata")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", got)
	}

	var metadata RunMetadata
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		t.Fatal(err)
	}
	if metadata.Name != "dqn_cartpole" {
		t.Fatalf("Name = %q, want dqn_cartpole", metadata.Name)
	}
	if !reflect.DeepEqual(metadata.PlotOptions.Columns, []string{"loss"}) {
		t.Fatalf("Columns = %v", metadata.PlotOptions.Columns)
	}
}

func TestHttpServerIndex(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "/charts/loss.png") {
		t.Fatalf("index does not link the loss chart: %s", body)
	}
}

func TestHttpServerChart(t *testing.T) {
	_, ts := newTestServer(t)

	t.Run("known column renders png", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/charts/loss.png")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if got := resp.Header.Get("Content-Type"); got != "image/png" {
			t.Fatalf("Content-Type = %q, want image/png", got)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.HasPrefix(body, pngMagic) {
			t.Fatalf("body does not start with PNG magic")
		}
	})

	t.Run("unknown column is 404", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/charts/nope.png")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestHttpServerWebSocket(t *testing.T) {
	_, ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	var rows []jsonMetricRow
	for {
		var row jsonMetricRow
		if err := wsjson.Read(ctx, c, &row); err != nil {
			// normal closure after the replayed end marker
			break
		}
		rows = append(rows, row)
	}

	want := []jsonMetricRow{
		{X: 1, Ys: []float64{0.5}},
		{X: 2, Ys: []float64{0.4}},
		{X: 3, Ys: []float64{0.3}},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("got rows %v, want %v", rows, want)
	}
}

func TestHttpServerWebSocketStream(t *testing.T) {
	_, ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws2"
	c, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	// first message must be metadata
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := DecodeStreamMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Header.Type != MessageTypeMetadata {
		t.Fatalf("first message type = 0x%02x, want metadata", msg.Header.Type)
	}
	metadata := msg.Payload.(RunMetadata)
	if metadata.Name != "dqn_cartpole" {
		t.Fatalf("metadata name = %q", metadata.Name)
	}

	var rows []DataMessage
	sawEnd := false
	for !sawEnd {
		_, data, err := c.Read(ctx)
		if err != nil {
			t.Fatalf("read failed before stream end: %v", err)
		}
		msg, err := DecodeStreamMessage(data)
		if err != nil {
			t.Fatal(err)
		}
		switch msg.Header.Type {
		case MessageTypeData:
			rows = append(rows, msg.Payload.(DataMessage))
		case MessageTypeStreamEnd:
			end := msg.Payload.(StreamEndMessage)
			if end.Error {
				t.Fatalf("stream ended with error: %s", end.Msg)
			}
			sawEnd = true
		default:
			t.Fatalf("unexpected message type 0x%02x", msg.Header.Type)
		}
	}

	if len(rows) != 3 {
		t.Fatalf("got %d data messages, want 3", len(rows))
	}
	if rows[0].X != 1 || !reflect.DeepEqual(rows[0].Ys, []float64{0.5}) {
		t.Fatalf("first row = %+v", rows[0])
	}
}
