package fig

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// UnknownSize is the expected size of a download whose length isn't known.
const UnknownSize int64 = -1

// Download is handed to a Source to write its file(s) and report progress.
type Download interface {
	// AddDownloadedBytes increases how many bytes have been successfully downloaded so far.
	AddDownloadedBytes(n int)

	// SetExpectedBytes records the total size, or UnknownSize.
	SetExpectedBytes(n int64)

	// Cancel the Download, stopping any in-progress I/O activity.
	Cancel()

	// Close releases the Download's context.
	Close() error

	// Context is the cancellable context of this Download.
	Context() context.Context

	// CreateFile creates (or truncates) filename inside the target directory, creating the directory if needed.
	CreateFile(filename string) (io.WriteCloser, error)

	// HTTPClient to use for any requests made on behalf of this Download.
	HTTPClient() *http.Client

	// Naming decides filenames the source can't derive itself.
	Naming() NamingConfig

	// Progress returns the downloaded and expected bytes of the download.
	Progress() (downloaded int64, expected int64)

	// SaveBytes writes data to filename in one go, without progress reporting.
	SaveBytes(filename string, data []byte) error

	// SaveStream will download the stream to the named file, calling AddDownloadedBytes as necessary. Write and close
	// failures are ErrIO, read failures are ErrNetwork.
	SaveStream(filename string, stream io.Reader) error

	// TargetPath is the full path of the last file created, or "".
	TargetPath() string

	// Write will ignore the data but will send the byte count to AddDownloadedBytes. Allows progress tracking using
	// io.MultiWriter (but ensure the Download is the last writer to avoid counting failed writes).
	Write(p []byte) (n int, err error)
}

type download struct {
	ctx              context.Context
	cancel           context.CancelFunc
	client           *http.Client
	naming           NamingConfig
	progressCallback func(downloaded int64, expected int64)
	targetDir        string
	targetPath       string
	expectedBytes    int64
	downloadedBytes  int64
}

func (d *download) AddDownloadedBytes(n int) {
	d.downloadedBytes += int64(n)
	if d.progressCallback != nil {
		d.progressCallback(d.Progress())
	}
}

func (d *download) SetExpectedBytes(n int64) {
	if n < 0 {
		n = UnknownSize
	}
	d.expectedBytes = n
	if d.progressCallback != nil {
		d.progressCallback(d.Progress())
	}
}

func (d *download) Cancel() {
	d.cancel()
}

func (d *download) Close() error {
	d.cancel()
	return nil
}

func (d *download) Context() context.Context {
	return d.ctx
}

func (d *download) CreateFile(filename string) (io.WriteCloser, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return nil, WithKind(ErrIO, fmt.Errorf("invalid filename %q", filename))
	}
	if err := os.MkdirAll(d.targetDir, 0775); err != nil {
		return nil, WithKind(ErrIO, err)
	}
	targetPath := filepath.Join(d.targetDir, name)
	f, err := os.Create(targetPath)
	if err != nil {
		return nil, WithKind(ErrIO, err)
	}
	d.targetPath = targetPath
	return f, nil
}

func (d *download) HTTPClient() *http.Client {
	return d.client
}

func (d *download) Naming() NamingConfig {
	return d.naming
}

func (d *download) Progress() (int64, int64) {
	return d.downloadedBytes, d.expectedBytes
}

func (d *download) SaveBytes(filename string, data []byte) error {
	f, err := d.CreateFile(filename)
	if err != nil {
		return fmt.Errorf("failed to open target file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return WithKind(ErrIO, fmt.Errorf("failed to write file: %w", err))
	}
	if err := f.Close(); err != nil {
		return WithKind(ErrIO, fmt.Errorf("failed to close file: %w", err))
	}
	return nil
}

func (d *download) SaveStream(filename string, stream io.Reader) error {
	f, err := d.CreateFile(filename)
	if err != nil {
		return fmt.Errorf("failed to open target file: %w", err)
	}

	_, err = io.Copy(io.MultiWriter(writerKind{f}, d), &readerContext{ctx: d.ctx, r: stream})
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to save stream: %w", err)
	}
	// Close flushes to disk, so only after this is the file complete
	if err := f.Close(); err != nil {
		return WithKind(ErrIO, fmt.Errorf("failed to close file: %w", err))
	}
	return nil
}

func (d *download) TargetPath() string {
	return d.targetPath
}

func (d *download) Write(p []byte) (n int, err error) {
	n = len(p)
	d.AddDownloadedBytes(n)
	return n, nil
}

type DownloadBuilder interface {
	Build() (Download, error)
	WithContext(ctx context.Context) DownloadBuilder
	WithHTTPClient(client *http.Client) DownloadBuilder
	WithNaming(naming NamingConfig) DownloadBuilder
	WithProgressCallback(f func(downloaded int64, expected int64)) DownloadBuilder
	WithTargetDir(dir string) DownloadBuilder
}

type downloadBuilder struct {
	ctx              context.Context
	client           *http.Client
	naming           NamingConfig
	progressCallback func(int64, int64)
	targetDir        string
}

func NewDownloadBuilder() DownloadBuilder {
	return &downloadBuilder{
		ctx:       context.Background(),
		client:    http.DefaultClient,
		naming:    NewNamingConfig(),
		targetDir: ".",
	}
}

func (b *downloadBuilder) Build() (Download, error) {
	if b.targetDir == "" {
		return nil, WithKind(ErrIO, fmt.Errorf("no target directory"))
	}
	d := download{
		client:           b.client,
		naming:           b.naming,
		progressCallback: b.progressCallback,
		targetDir:        b.targetDir,
		expectedBytes:    UnknownSize,
	}
	d.ctx, d.cancel = context.WithCancel(b.ctx)
	return &d, nil
}

func (b *downloadBuilder) WithContext(ctx context.Context) DownloadBuilder {
	b.ctx = ctx
	return b
}

func (b *downloadBuilder) WithHTTPClient(client *http.Client) DownloadBuilder {
	b.client = client
	return b
}

func (b *downloadBuilder) WithNaming(naming NamingConfig) DownloadBuilder {
	b.naming = naming
	return b
}

func (b *downloadBuilder) WithProgressCallback(f func(int64, int64)) DownloadBuilder {
	b.progressCallback = f
	return b
}

func (b *downloadBuilder) WithTargetDir(dir string) DownloadBuilder {
	b.targetDir = dir
	return b
}
