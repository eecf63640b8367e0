package export

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fairscan/leadmerge-cli/internal/config"
)

// FTPUpload stores a local file on the configured FTP server under the
// same base name.
func FTPUpload(ctx context.Context, cfg config.FTPConfig, localPath string) error {
	host := cfg.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}

	zap.L().Debug("export: ftp connecting", zap.String("host", host))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(30*time.Second), ftp.DialWithContext(ctx))
	if err != nil {
		return eris.Wrap(err, "export: ftp dial")
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Login(cfg.User, cfg.Password); err != nil {
		return eris.Wrap(err, "export: ftp login")
	}
	if cfg.Dir != "" {
		if err := conn.ChangeDir(cfg.Dir); err != nil {
			return eris.Wrapf(err, "export: ftp cd %s", cfg.Dir)
		}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return eris.Wrapf(err, "export: open %s", localPath)
	}
	defer f.Close()

	name := filepath.Base(localPath)
	if err := conn.Stor(name, f); err != nil {
		return eris.Wrapf(err, "export: ftp store %s", name)
	}

	zap.L().Info("export: ftp upload complete",
		zap.String("host", cfg.Host),
		zap.String("file", name),
	)
	return nil
}
