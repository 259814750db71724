package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"

	"github.com/rlworks/metricviz"
)

// Config holds the configuration for the WS reader.
type Config struct {
	ServerURL string
	Output    io.Writer
	Logger    logrus.FieldLogger
}

// WSReader reads from a metricviz /ws2 endpoint and dumps the metric rows as
// CSV, so a live run can be retro-plotted afterwards.
type WSReader struct {
	config    Config
	csvWriter *csv.Writer

	headerWritten bool
}

func NewWSReader(config Config) *WSReader {
	return &WSReader{
		config:    config,
		csvWriter: csv.NewWriter(config.Output),
	}
}

// Connect establishes the websocket connection and processes messages until
// the stream ends.
func (w *WSReader) Connect() error {
	u, err := url.Parse(w.config.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws2"

	w.config.Logger.WithField("url", u.String()).Info("connecting to websocket")

	ctx := context.Background()
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		_, messageData, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				w.config.Logger.Info("connection closed normally")
				break
			}
			w.config.Logger.WithError(err).Error("error reading message")
			break
		}

		if err := w.processMessage(messageData); err != nil {
			if err == io.EOF {
				w.config.Logger.Info("stream ended")
				break
			}
			w.config.Logger.WithError(err).Error("error processing message")
		}
	}

	w.csvWriter.Flush()
	return w.csvWriter.Error()
}

func (w *WSReader) processMessage(messageData []byte) error {
	msg, err := metricviz.DecodeStreamMessage(messageData)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	switch msg.Header.Type {
	case metricviz.MessageTypeData:
		dataMsg, ok := msg.Payload.(metricviz.DataMessage)
		if !ok {
			return fmt.Errorf("invalid DATA message payload type: %T", msg.Payload)
		}
		return w.processDataMessage(dataMsg)

	case metricviz.MessageTypeMetadata:
		metadata, ok := msg.Payload.(metricviz.RunMetadata)
		if !ok {
			return fmt.Errorf("invalid METADATA message payload type: %T", msg.Payload)
		}
		w.config.Logger.WithField("metadata", metadata).Debug("received metadata")
		return w.writeHeader(metadata)

	case metricviz.MessageTypeStreamEnd:
		streamEnd, ok := msg.Payload.(metricviz.StreamEndMessage)
		if !ok {
			return fmt.Errorf("invalid STREAM_END message payload type: %T", msg.Payload)
		}
		if streamEnd.Error {
			w.config.Logger.WithField("msg", streamEnd.Msg).Warn("stream ended with error")
		}
		return io.EOF
	}

	return fmt.Errorf("unknown message type: 0x%02x", msg.Header.Type)
}

func (w *WSReader) writeHeader(metadata metricviz.RunMetadata) error {
	if w.headerWritten {
		return nil
	}
	w.headerWritten = true

	header := append([]string{"x"}, metadata.PlotOptions.Columns...)
	return w.csvWriter.Write(header)
}

func (w *WSReader) processDataMessage(msg metricviz.DataMessage) error {
	record := make([]string, 0, len(msg.Ys)+1)
	record = append(record, strconv.FormatFloat(msg.X, 'f', -1, 64))
	for _, y := range msg.Ys {
		record = append(record, strconv.FormatFloat(y, 'f', -1, 64))
	}
	return w.csvWriter.Write(record)
}

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "metricviz server URL")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	reader := NewWSReader(Config{
		ServerURL: *serverURL,
		Output:    os.Stdout,
		Logger:    logrus.WithField("tag", "WSReader"),
	})
	if err := reader.Connect(); err != nil {
		logrus.WithError(err).Fatal("ws reader failed")
	}
}
