// Package localstate locates the per-user directory holding client-local state
// (the identity file and the default SQLite database).
package localstate

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	envHome          = "DREAMS_EXIT_HOME"
	dirName          = ".dreams-exit"
	dbFilename       = "dreams.db"
	identityFilename = "identity"
)

// DataDir returns ~/.dreams-exit, or $DREAMS_EXIT_HOME when set, creating it 0700.
func DataDir() (string, error) {
	dir := os.Getenv(envHome)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "locate home directory")
		}
		dir = filepath.Join(home, dirName)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.Wrapf(err, "create state dir %s", dir)
	}
	return dir, nil
}

// DBPath returns the default SQLite database file.
func DBPath() (string, error) { return file(dbFilename) }

// IdentityPath returns the file holding the persisted owner id.
func IdentityPath() (string, error) { return file(identityFilename) }

func file(name string) (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
