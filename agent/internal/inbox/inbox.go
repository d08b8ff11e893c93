// Package inbox runs envelopes dropped as *.json files into a directory.
// Writers should create the file elsewhere and rename it in, so the inbox
// never sees a partial document. Handled files are renamed to *.done, or
// *.failed when the envelope was unusable or did not succeed.
package inbox

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"azure-iot-serializer/agent/internal/logger"
	"azure-iot-serializer/network"
)

const (
	SourceInbox    = "inbox"
	reportQueueLen = 64
)

type Inbox struct {
	dir     string
	h       network.Handler
	watcher *fsnotify.Watcher

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New watches dir, creating it if needed.
func New(dir string, h network.Handler) (*Inbox, error) {
	if dir == "" || h == nil {
		return nil, errors.New("inbox: directory and handler are required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	logger.Infof("Watching inbox: %s", dir)
	return &Inbox{dir: dir, h: h, watcher: watcher, stop: make(chan struct{})}, nil
}

// Start handles files already waiting, then new arrivals. The returned
// channel closes after Close.
func (in *Inbox) Start() <-chan network.Report {
	out := make(chan network.Report, reportQueueLen)
	in.wg.Add(1)
	go in.run(out)
	go func() {
		in.wg.Wait()
		close(out)
	}()
	return out
}

func (in *Inbox) run(out chan<- network.Report) {
	defer in.wg.Done()

	pending, err := filepath.Glob(filepath.Join(in.dir, "*.json"))
	if err != nil {
		logger.Errorf("Inbox scan failed: %v", err)
	}
	sort.Strings(pending)
	for _, p := range pending {
		in.emit(p, out)
	}

	for {
		select {
		case <-in.stop:
			return
		case evt, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write) != 0 && strings.HasSuffix(evt.Name, ".json") {
				in.emit(evt.Name, out)
			}
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			logger.Errorf("Inbox watcher error: %v", err)
		}
	}
}

func (in *Inbox) emit(path string, out chan<- network.Report) {
	rep, ok := in.Process(path)
	if !ok {
		return
	}
	select {
	case out <- rep:
	default:
		logger.Warnf("Inbox report queue full, dropping report %s", rep.ID)
	}
}

// Process handles one file. ok is false when the file was already taken.
func (in *Inbox) Process(path string) (rep network.Report, ok bool) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return network.Report{}, false
	}
	if err != nil {
		rep = network.Report{Source: SourceInbox, Result: network.ResultRejected, Error: err.Error(), At: time.Now()}
	} else if env, perr := network.ParseEnvelope(b, network.KindCommand); perr != nil {
		rep = network.Report{Source: SourceInbox, Result: network.ResultRejected, Error: perr.Error(), At: time.Now()}
	} else {
		rep = in.h.Handle(env, SourceInbox)
	}

	suffix := ".done"
	if rep.Result != "success" {
		suffix = ".failed"
	}
	dst := strings.TrimSuffix(path, ".json") + suffix
	if err := os.Rename(path, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return network.Report{}, false
		}
		logger.Errorf("Inbox rename %s: %v", path, err)
	}
	logger.Infof("Inbox %s -> %s (%s)", filepath.Base(path), filepath.Base(dst), rep.Result)
	return rep, true
}

// Close stops watching.
func (in *Inbox) Close() error {
	var err error
	in.once.Do(func() {
		close(in.stop)
		err = in.watcher.Close()
	})
	return err
}
