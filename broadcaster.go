package metricviz

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Broadcaster reads metric rows from a MetricRowReader and fans them out to
// registered live-view channels, keeping a bounded replay buffer so clients
// connecting mid-run still see the full history.
type Broadcaster struct {
	input MetricRowReader

	// If set, every row read is also appended here in CSV form, so a live run
	// can be retro-plotted later.
	teeOutput io.Writer

	mutex sync.Mutex
	wg    sync.WaitGroup

	streamEnded atomic.Bool
	err         error // set by run(); read only after streamEnded is true

	// Channels of connected live-view clients. Must be buffered: a blocked
	// channel blocks the whole broadcast.
	channelsForLiveUpdate []chan<- MetricRow

	// The most recent rows, replayed to newly registered channels.
	dataBuffer *ThreadUnsafeRing[MetricRow]

	numRowsEmitted int

	logger logrus.FieldLogger
}

func NewBroadcaster(input MetricRowReader, bufferCapacity int, teeOutput io.Writer) *Broadcaster {
	return &Broadcaster{
		input:                 input,
		teeOutput:             teeOutput,
		channelsForLiveUpdate: make([]chan<- MetricRow, 0),
		dataBuffer:            NewRing[MetricRow](bufferCapacity),
		logger:                logrus.WithField("tag", "Broadcaster"),
	}
}

func (b *Broadcaster) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := b.run(ctx)

		b.err = err

		// All variables read after the stream ends must be written before this
		// store releases them.
		b.streamEnded.Store(true)

		// The end marker is cached so clients connecting after EOF learn the
		// stream is over from the replay alone.
		b.cacheAndBroadcast(MetricRow{
			streamEnded: true,
			streamErr:   err,
		})

		logger := b.logger.WithField("numRowsEmitted", b.numRowsEmitted)
		if err != nil {
			logger = logger.WithError(err)
		}
		logger.Info("metric stream ended")
	}()
}

func (b *Broadcaster) Wait() {
	b.wg.Wait()
}

// RegisterChannel adds a live-update channel. Called from the HTTP server
// when a new websocket connection is initiated.
//
// The broadcaster mutex is held while the replay buffer is pushed to the new
// channel, so no row can slip between replay and live updates. Registration
// therefore briefly stalls all live plots; acceptable, since new clients are
// rare.
func (b *Broadcaster) RegisterChannel(ctx context.Context, c chan<- MetricRow) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for _, row := range b.dataBuffer.ReadAllOrdered() {
		c <- row
	}
	b.channelsForLiveUpdate = append(b.channelsForLiveUpdate, c)

	b.logger.WithField("channels", len(b.channelsForLiveUpdate)).Info("registered channel")
}

// DeregisterChannel removes a previously registered channel. The channel must
// not be closed until this returns, or the broadcast may panic.
func (b *Broadcaster) DeregisterChannel(ctx context.Context, c chan<- MetricRow) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.channelsForLiveUpdate = Filter(b.channelsForLiveUpdate, func(channel chan<- MetricRow) bool {
		return channel != c
	})
	b.logger.WithField("channels", len(b.channelsForLiveUpdate)).Info("deregistered channel")
}

// Snapshot returns the currently buffered rows, earliest first, excluding the
// end marker. Used to render chart images of a run in progress.
func (b *Broadcaster) Snapshot() []MetricRow {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return Filter(b.dataBuffer.ReadAllOrdered(), func(row MetricRow) bool {
		return !row.streamEnded
	})
}

func (b *Broadcaster) run(ctx context.Context) error {
	for {
		row, err := b.input.Read(ctx)
		if err == errIgnoreThisRow {
			continue
		} else if err == io.EOF {
			// Keep serving the cached rows: new browser tabs can still come
			// online after the run finishes.
			return nil
		} else if err != nil {
			return err
		}

		if b.teeOutput != nil {
			line := make([]string, 0, len(row.Ys)+1)
			line = append(line, fmt.Sprintf("%f", row.X))
			for _, y := range row.Ys {
				line = append(line, fmt.Sprintf("%f", y))
			}
			fmt.Fprintln(b.teeOutput, strings.Join(line, ","))
		}

		b.cacheAndBroadcast(row)
	}
}

func (b *Broadcaster) cacheAndBroadcast(row MetricRow) {
	b.numRowsEmitted++

	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.dataBuffer.Push(row)
	for _, c := range b.channelsForLiveUpdate {
		c <- row
	}
}
