package synth

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher logs report files as they appear under a project directory.
type Watcher struct {
	fs   *fsnotify.Watcher
	log  *log.Entry
	done chan struct{}

	mu      sync.Mutex
	reports map[string]bool
}

// Watch starts watching dir and every directory created below it.
func Watch(dir string, l *log.Entry) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		fs:      fw,
		log:     l,
		done:    make(chan struct{}),
		reports: map[string]bool{},
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("report watcher")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addTree(ev.Name)
			return
		}
	}
	if !strings.HasSuffix(ev.Name, ".rpt") {
		return
	}
	w.mu.Lock()
	seen := w.reports[ev.Name]
	w.reports[ev.Name] = true
	w.mu.Unlock()
	if !seen {
		w.log.WithField("report", ev.Name).Info("report written")
	}
}

// addTree watches dir and the directories already inside it, which may
// have been created before the watch was added.
func (w *Watcher) addTree(dir string) {
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if err := w.fs.Add(path); err != nil {
				w.log.WithError(err).WithField("dir", path).Debug("cannot watch")
			}
			return nil
		}
		w.handle(fsnotify.Event{Name: path, Op: fsnotify.Create})
		return nil
	})
}

// Reports returns the reports seen so far, sorted.
func (w *Watcher) Reports() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.reports))
	for r := range w.reports {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.fs.Close()
	<-w.done
	return err
}
