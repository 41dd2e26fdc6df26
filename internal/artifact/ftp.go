package artifact

import (
	"context"
	"io"
	"net"
	gopath "path"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP artifact backend.
type FTPOptions struct {
	Addr     string
	User     string
	Password string
	Timeout  time.Duration
}

// FTPStore uploads artifacts to an FTP server. Each Put opens and closes its
// own connection; artifact writes are rare enough that pooling would buy
// nothing.
type FTPStore struct {
	opts FTPOptions
}

// NewFTPStore creates an FTPStore. Missing credentials fall back to
// anonymous; a missing port falls back to 21.
func NewFTPStore(opts FTPOptions) *FTPStore {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.User == "" {
		opts.User = "anonymous"
		opts.Password = "anonymous@"
	}
	if _, _, err := net.SplitHostPort(opts.Addr); err != nil {
		opts.Addr = net.JoinHostPort(opts.Addr, "21")
	}
	return &FTPStore{opts: opts}
}

func (s *FTPStore) Put(ctx context.Context, path string, r io.Reader) error {
	zap.L().Debug("ftp: uploading artifact",
		zap.String("addr", s.opts.Addr),
		zap.String("path", path),
	)

	conn, err := ftp.Dial(s.opts.Addr, ftp.DialWithTimeout(s.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return eris.Wrap(err, "artifact: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(s.opts.User, s.opts.Password); err != nil {
		return eris.Wrap(err, "artifact: ftp login")
	}

	mkdirAll(conn, gopath.Dir(path))

	if err := conn.Stor(path, r); err != nil {
		return eris.Wrapf(err, "artifact: ftp store %s", path)
	}
	return nil
}

// mkdirAll creates each directory component. MakeDir fails when the
// directory already exists; a genuinely missing directory fails the
// subsequent Stor instead.
func mkdirAll(conn *ftp.ServerConn, dir string) {
	if dir == "" || dir == "." || dir == "/" {
		return
	}
	built := ""
	for _, part := range splitPath(dir) {
		built = gopath.Join(built, part)
		_ = conn.MakeDir(built)
	}
}

func splitPath(p string) []string {
	var parts []string
	for p != "" && p != "." && p != "/" {
		parts = append([]string{gopath.Base(p)}, parts...)
		p = gopath.Dir(p)
	}
	return parts
}
