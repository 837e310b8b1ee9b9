package fig

// A Source is something a Provider recognised and knows how to fetch.
type Source interface {
	// URL is the location the Source was matched from.
	URL() string
	// Hoster is the host serving the URL, or "" when there is none (inline data).
	Hoster() string
	// Download fetches the content into d. It must honour d.Context() and report progress through d.
	Download(d Download) error
}
