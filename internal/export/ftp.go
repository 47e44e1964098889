package export

import (
	"bytes"
	"context"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kaigo-ai/carelog/internal/resilience"
)

// FTPOptions configures the FTP uploader.
type FTPOptions struct {
	Timeout  time.Duration
	User     string
	Password string
}

// FTPUploader stores export files on an FTP server.
type FTPUploader struct {
	opts FTPOptions
}

// NewFTPUploader creates an FTPUploader. Missing credentials default to
// anonymous login.
func NewFTPUploader(opts FTPOptions) *FTPUploader {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.User == "" {
		opts.User = "anonymous"
		opts.Password = "anonymous@"
	}
	return &FTPUploader{opts: opts}
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	path = u.Path
	if path == "" {
		return "", "", eris.New("empty path in ftp url")
	}

	return host, path, nil
}

// Upload connects to the FTP server and stores data at the path named by
// ftpURL (e.g. ftp://host/exports/records.csv). Transient network failures
// are retried with a fresh connection per attempt.
func (f *FTPUploader) Upload(ctx context.Context, ftpURL string, data []byte) error {
	host, path, err := parseFTPURL(ftpURL)
	if err != nil {
		return err
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("ftp", "upload")

	err = resilience.Do(ctx, retry, func(ctx context.Context) error {
		return f.store(ctx, host, path, data)
	})
	if err != nil {
		return err
	}

	zap.L().Info("ftp: uploaded export", zap.String("host", host), zap.String("path", path))
	return nil
}

func (f *FTPUploader) store(ctx context.Context, host, path string, data []byte) error {
	zap.L().Debug("ftp: connecting", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return eris.Wrap(err, "ftp dial")
	}
	defer conn.Quit()

	if err := conn.Login(f.opts.User, f.opts.Password); err != nil {
		return eris.Wrap(err, "ftp login")
	}

	if err := conn.Stor(path, bytes.NewReader(data)); err != nil {
		return eris.Wrap(err, "ftp store")
	}

	return nil
}
