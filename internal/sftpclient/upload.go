// Package sftpclient uploads catalog exports to an SFTP drop directory.
package sftpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"eduadmin-sync/internal/config"
)

type Config struct {
	Host      string
	Port      int
	User      string
	Pass      string
	RemoteDir string
	// KnownHosts is the known_hosts file used to verify the server key.
	// Empty means ~/.ssh/known_hosts.
	KnownHosts            string
	InsecureIgnoreHostKey bool
	DialTimeout           time.Duration
}

// FromConfig maps the export.sftp configuration section.
func FromConfig(c config.SFTPConfig) Config {
	return Config{
		Host:                  c.Host,
		Port:                  c.Port,
		User:                  c.User,
		Pass:                  c.Pass,
		RemoteDir:             c.Dir,
		KnownHosts:            c.KnownHosts,
		InsecureIgnoreHostKey: c.InsecureIgnoreHostKey,
	}
}

func (c Config) withDefaults() (Config, error) {
	if c.Host == "" || c.User == "" || c.Pass == "" {
		return c, errors.New("sftp: missing SFTP_HOST / SFTP_USER / SFTP_PASS")
	}
	if c.Port <= 0 {
		c.Port = 22
	}
	if c.RemoteDir == "" {
		c.RemoteDir = "/"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 20 * time.Second
	}
	return c, nil
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func hostKeyCallback(cfg Config) (ssh.HostKeyCallback, error) {
	if cfg.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	file := cfg.KnownHosts
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("sftp: locate known_hosts: %w", err)
		}
		file = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(file)
	if err != nil {
		return nil, fmt.Errorf("sftp: load known_hosts %s: %w", file, err)
	}
	return cb, nil
}

// UploadFile copies localPath to RemoteDir/remoteFileName.
func UploadFile(ctx context.Context, cfg Config, localPath string, remoteFileName string) error {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("sftp: open local file: %w", err)
	}
	defer src.Close()
	return Upload(ctx, cfg, src, remoteFileName)
}

// Upload streams r to RemoteDir/remoteFileName, creating the directory if needed.
func Upload(ctx context.Context, cfg Config, r io.Reader, remoteFileName string) error {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return err
	}
	cb, err := hostKeyCallback(cfg)
	if err != nil {
		return err
	}

	sshClient, err := dial(ctx, cfg, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Pass)},
		HostKeyCallback: cb,
		Timeout:         cfg.DialTimeout,
	})
	if err != nil {
		return err
	}
	defer sshClient.Close()

	sftpCli, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("sftp: new client: %w", err)
	}
	defer sftpCli.Close()

	if err := sftpCli.MkdirAll(cfg.RemoteDir); err != nil {
		return fmt.Errorf("sftp: mkdir %s: %w", cfg.RemoteDir, err)
	}

	remotePath := path.Join(cfg.RemoteDir, remoteFileName)
	dst, err := sftpCli.Create(remotePath)
	if err != nil {
		return fmt.Errorf("sftp: create remote file: %w", err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		return fmt.Errorf("sftp: upload copy: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("sftp: close remote file: %w", err)
	}
	return nil
}

// dial opens the ssh connection, honoring ctx for the TCP connect and handshake.
func dial(ctx context.Context, cfg Config, sshCfg *ssh.ClientConfig) (*ssh.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.addr())
	if err != nil {
		return nil, fmt.Errorf("sftp: dial error: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, cfg.addr(), sshCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("sftp: handshake: %w", err)
	}
	conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}
