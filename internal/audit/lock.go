package audit

import (
	"os"
	"sync"

	"github.com/Heavybullets8/TT-Migration/pkg/errclass"
)

// pathLocks serialises goroutines of this process per log file; the flock
// on the sidecar serialises processes.
var pathLocks sync.Map // map[string]*sync.Mutex

func mutexFor(path string) *sync.Mutex {
	mu, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// withLock runs fn while holding the exclusive lock for l's log file. The
// lock lives on "<log>.lock" because atomic replace swaps the log's inode.
func (l *Log) withLock(fn func() error) error {
	mu := mutexFor(l.path)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return errclass.ErrIO.Wrap(err, "create log dir")
	}

	f, err := os.OpenFile(l.lockPath(), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return errclass.ErrIO.Wrap(err, "open lock file")
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return errclass.ErrIO.Wrap(err, "flock log")
	}
	defer unlockFile(f)

	return fn()
}

func (l *Log) lockPath() string {
	return l.path + ".lock"
}
