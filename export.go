package metricviz

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	chart "github.com/wcharczuk/go-chart/v2"
)

// envKey is the environment variable set by the experiment framework; when it
// equals "test" no graph files are written.
const envKey = "LAB_ENV"

// Export failures are warned about once per process. Graphs are best-effort
// and must never abort the surrounding run.
var exportWarnOnce sync.Once

// SaveImage renders the chart as PNG and writes it to filepath. It is a no-op
// under LAB_ENV=test. Failures are swallowed after logging a single warning;
// graphs can be regenerated later via retro-plotting.
func SaveImage(ch chart.Chart, filepath string) {
	if os.Getenv(envKey) == "test" {
		return
	}
	filepath = smartPath(filepath)

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		warnExportFailure(err)
		return
	}
	if err := os.WriteFile(filepath, buf.Bytes(), 0o644); err != nil {
		warnExportFailure(err)
	}
}

func warnExportFailure(err error) {
	exportWarnOnce.Do(func() {
		logrus.WithField("tag", "export").WithError(err).
			Warn("failed to generate graph, run retro-plot to generate graphs later")
	})
}

// smartPath expands a leading ~ and makes relative paths absolute against the
// working directory.
func smartPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
