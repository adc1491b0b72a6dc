// Package inbox pulls clinic transcript exports from an FTP drop directory.
package inbox

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborview-health/intake-cli/internal/config"
)

// hostWithPort appends the default FTP port when the host carries none.
func hostWithPort(host string) (string, error) {
	if host == "" {
		return "", eris.New("inbox: ftp host is required")
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		return net.JoinHostPort(host, "21"), nil
	}
	return host, nil
}

// Fetch downloads transcript files matching cfg.Pattern from cfg.RemoteDir
// into destDir, skipping files already present locally. Returns the local
// paths of the files it downloaded.
func Fetch(ctx context.Context, cfg config.InboxConfig, destDir string) ([]string, error) {
	host, err := hostWithPort(cfg.Host)
	if err != nil {
		return nil, err
	}

	pattern := cfg.Pattern
	if pattern == "" {
		pattern = "*"
	}
	if _, err := path.Match(pattern, "probe"); err != nil {
		return nil, eris.Wrapf(err, "inbox: bad pattern %q", pattern)
	}

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	zap.L().Debug("inbox: connecting",
		zap.String("host", host),
		zap.String("remote_dir", cfg.RemoteDir))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "inbox: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	user, pass := cfg.User, cfg.Password
	if user == "" {
		user, pass = "anonymous", "anonymous@"
	}
	if err := conn.Login(user, pass); err != nil {
		return nil, eris.Wrap(err, "inbox: ftp login")
	}

	entries, err := conn.List(cfg.RemoteDir)
	if err != nil {
		return nil, eris.Wrapf(err, "inbox: ftp list %s", cfg.RemoteDir)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "inbox: create local dir %s", destDir)
	}

	var fetched []string
	for _, entry := range entries {
		if entry.Type != ftp.EntryTypeFile {
			continue
		}
		if matched, _ := path.Match(pattern, entry.Name); !matched {
			continue
		}

		localPath := filepath.Join(destDir, entry.Name)
		if _, statErr := os.Stat(localPath); statErr == nil {
			zap.L().Debug("inbox: already present, skipping", zap.String("file", entry.Name))
			continue
		}

		if err := download(conn, path.Join(cfg.RemoteDir, entry.Name), localPath); err != nil {
			return fetched, err
		}
		fetched = append(fetched, localPath)
		zap.L().Info("inbox: downloaded",
			zap.String("file", entry.Name),
			zap.Uint64("size", entry.Size))
	}

	return fetched, nil
}

// download retrieves one remote file into localPath.
func download(conn *ftp.ServerConn, remotePath string, localPath string) error {
	resp, err := conn.Retr(remotePath)
	if err != nil {
		return eris.Wrapf(err, "inbox: retrieve %s", remotePath)
	}
	defer resp.Close() //nolint:errcheck

	file, err := os.Create(localPath)
	if err != nil {
		return eris.Wrapf(err, "inbox: create %s", localPath)
	}
	defer file.Close() //nolint:errcheck

	if _, err := io.Copy(file, resp); err != nil {
		return eris.Wrapf(err, "inbox: write %s", localPath)
	}
	return nil
}
