//go:build !prod

package metricviz

func openBrowser(url string) {
	// In dev mode the browser is not opened automatically; the URL is logged
	// and it is up to the developer.
}
