package metricviz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	chart "github.com/wcharczuk/go-chart/v2"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const clientBufferSize = 10000

// HttpServer serves the live view of a run: run metadata, metric rows over
// websocket, and rendered chart PNGs of the data received so far.
type HttpServer struct {
	broadcaster *Broadcaster
	addr        string
	metadata    RunMetadata
	mux         *http.ServeMux
	logger      logrus.FieldLogger
}

func NewHttpServer(broadcaster *Broadcaster, addr string, metadata RunMetadata) *HttpServer {
	s := &HttpServer{
		broadcaster: broadcaster,
		addr:        addr,
		metadata:    metadata,
		mux:         http.NewServeMux(),
		logger:      logrus.WithField("tag", "HttpServer"),
	}

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/metadata", s.handleMetadata)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/ws2", s.handleWebSocketStream)
	s.mux.HandleFunc("/charts/", s.handleChart)

	return s
}

func (s *HttpServer) handleIndex(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		http.NotFound(w, req)
		return
	}
	w.Header().Add("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><head><title>%s</title></head><body><h1>%s</h1><ul>", s.metadata.Name, s.metadata.Name)
	for _, col := range s.metadata.PlotOptions.Columns {
		fmt.Fprintf(w, `<li><a href="/charts/%s.png">%s</a></li>`, col, col)
	}
	fmt.Fprint(w, "</ul></body></html>")
}

func (s *HttpServer) handleMetadata(w http.ResponseWriter, req *http.Request) {
	w.Header().Add("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(s.metadata)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
	}
}

// handleWebSocket streams metric rows as JSON objects. The socket is closed
// normally when the underlying metric stream ends.
func (s *HttpServer) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	c, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to accept new websocket connection")
		return
	}

	ctx := req.Context()
	ctx = c.CloseRead(ctx) // write-only socket

	channel := make(chan MetricRow, clientBufferSize)
	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			select {
			case row, open := <-channel:
				if !open {
					s.logger.Warn("data channel closed, closing websocket")
					c.Close(websocket.StatusNormalClosure, "channel closed")
					return
				}
				if row.streamEnded {
					c.Close(websocket.StatusNormalClosure, "stream ended")
					return
				}

				err := wsjson.Write(ctx, c, jsonMetricRow{X: row.X, Ys: row.Ys})
				if err != nil {
					s.logger.Warn("websocket write failed and closed")
					return
				}
			case <-ctx.Done():
				s.logger.Info("client closed connection or context canceled")
				c.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}()

	s.broadcaster.RegisterChannel(ctx, channel)

	wg.Wait()
	s.broadcaster.DeregisterChannel(ctx, channel)
	close(channel)
}

type jsonMetricRow struct {
	X  float64
	Ys []float64
}

// handleWebSocketStream streams the binary metric-stream protocol: one
// METADATA message on connect, then DATA messages, then STREAM_END.
func (s *HttpServer) handleWebSocketStream(w http.ResponseWriter, req *http.Request) {
	c, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to accept new websocket connection")
		return
	}

	ctx := req.Context()
	ctx = c.CloseRead(ctx)

	metadataMsg, err := EncodeStreamMessage(StreamMessage{
		Header:  EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypeMetadata},
		Payload: s.metadata,
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to encode metadata message")
		c.Close(websocket.StatusInternalError, "metadata encoding failed")
		return
	}
	if err := c.Write(ctx, websocket.MessageBinary, metadataMsg); err != nil {
		s.logger.Warn("websocket write failed and closed")
		return
	}

	channel := make(chan MetricRow, clientBufferSize)
	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			select {
			case row, open := <-channel:
				if !open {
					c.Close(websocket.StatusNormalClosure, "channel closed")
					return
				}

				var msg StreamMessage
				if row.streamEnded {
					end := StreamEndMessage{}
					if row.streamErr != nil {
						end.Error = true
						end.Msg = row.streamErr.Error()
					}
					msg = StreamMessage{
						Header:  EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypeStreamEnd},
						Payload: end,
					}
				} else {
					msg = StreamMessage{
						Header: EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypeData},
						Payload: DataMessage{
							Length: uint32(len(row.Ys)),
							X:      row.X,
							Ys:     row.Ys,
						},
					}
				}

				encoded, err := EncodeStreamMessage(msg)
				if err != nil {
					s.logger.WithError(err).Error("failed to encode stream message")
					continue
				}
				if err := c.Write(ctx, websocket.MessageBinary, encoded); err != nil {
					s.logger.Warn("websocket write failed and closed")
					return
				}
				if row.streamEnded {
					c.Close(websocket.StatusNormalClosure, "stream ended")
					return
				}
			case <-ctx.Done():
				c.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}()

	s.broadcaster.RegisterChannel(ctx, channel)

	wg.Wait()
	s.broadcaster.DeregisterChannel(ctx, channel)
	close(channel)
}

// handleChart renders /charts/<column>.png from the rows buffered so far.
func (s *HttpServer) handleChart(w http.ResponseWriter, req *http.Request) {
	name := strings.TrimPrefix(req.URL.Path, "/charts/")
	name = strings.TrimSuffix(name, ".png")

	colIdx := -1
	for i, col := range s.metadata.PlotOptions.Columns {
		if col == name {
			colIdx = i
			break
		}
	}
	if colIdx < 0 {
		http.NotFound(w, req)
		return
	}

	rows := s.broadcaster.Snapshot()
	xs := make([]float64, 0, len(rows))
	ys := make([]float64, 0, len(rows))
	for _, row := range rows {
		if colIdx >= len(row.Ys) {
			continue
		}
		xs = append(xs, row.X)
		ys = append(ys, row.Ys[colIdx])
	}
	if len(xs) == 0 {
		http.Error(w, "no data yet", http.StatusNotFound)
		return
	}

	xLabel := s.metadata.PlotOptions.XLabel
	if xLabel == "" {
		xLabel = "x"
	}
	label := NewLabel([]string{name}, []string{xLabel}, LabelOptions{
		YTitle: s.metadata.PlotOptions.YLabel,
	})
	ch := BuildSeriesChart(ys, xs, NewLayout(label.Title, label.YTitle, label.XTitle))

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		s.logger.WithError(err).Warn("failed to render chart")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (s *HttpServer) Run() {
	url := fmt.Sprintf("http://%s", s.addr)
	s.logger.Infof("starting live view at %s", url)
	openBrowser(url)
	http.ListenAndServe(s.addr, s.mux)
}
