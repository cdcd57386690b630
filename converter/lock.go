package converter

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/dchest/uniuri"
	log "github.com/sirupsen/logrus"
)

// LockFile is created in a project directory by the run that owns it.
const LockFile = ".hlsflow.lock"

// ErrProjectBusy is returned when another run holds the project directory.
var ErrProjectBusy = errors.New("project directory is in use by another run")

type dirLock struct {
	path  string
	token string
}

// acquireLock takes the project directory for this process. A lock left by
// a process that no longer exists is taken over.
func acquireLock(dir string) (*dirLock, error) {
	path := filepath.Join(dir, LockFile)
	l := &dirLock{path: path, token: uniuri.New()}
	content := fmt.Sprintf("%d %s\n", os.Getpid(), l.token)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			_, err = f.WriteString(content)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				os.Remove(path)
				return nil, err
			}
			return l, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		observed, ok := stale(path)
		if !ok {
			return nil, ErrProjectBusy
		}
		log.WithField("lock", path).Warn("removing stale project lock")
		if _, err := takeOver(path, observed, l.token); err != nil {
			return nil, err
		}
	}
	return nil, ErrProjectBusy
}

// stale returns the content of the lock at path if it belongs to a dead
// process.
func stale(path string) ([]byte, bool) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, false
	}
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return nil, false
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return nil, false
	}
	if pid == os.Getpid() {
		return nil, false
	}
	return b, syscall.Kill(pid, 0) == syscall.ESRCH
}

// takeOver moves the stale lock at path out of the way. The lock is renamed
// first so that a lock another process created after observed was read is
// put back instead of deleted. It reports whether the stale lock was removed.
func takeOver(path string, observed []byte, token string) (bool, error) {
	moved := path + "." + token
	if err := os.Rename(path, moved); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer os.Remove(moved)
	b, err := ioutil.ReadFile(moved)
	if err != nil {
		return false, err
	}
	if bytes.Equal(b, observed) {
		return true, nil
	}
	// Link fails rather than replace a lock created in the meantime.
	if err := os.Link(moved, path); err != nil && !os.IsExist(err) {
		return false, err
	}
	return false, nil
}

// release removes the lock if it is still ours.
func (l *dirLock) release() error {
	if l == nil {
		return nil
	}
	b, err := ioutil.ReadFile(l.path)
	if err != nil {
		return err
	}
	if !strings.Contains(string(b), l.token) {
		return fmt.Errorf("lock %s is held by another run", l.path)
	}
	return os.Remove(l.path)
}
