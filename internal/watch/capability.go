package watch

import "github.com/fsnotify/fsnotify"

// Capability is the outcome of probing for filesystem notifications:
// either Available or Unavailable.
type Capability interface {
	capability()
}

// Available carries an open notification handle ready for registration.
type Available struct {
	FS *fsnotify.Watcher
}

// Unavailable records why notifications cannot be used.
type Unavailable struct {
	Err error
}

func (Available) capability()   {}
func (Unavailable) capability() {}

// Opener opens a notification handle. fsnotify.NewWatcher satisfies it.
type Opener func() (*fsnotify.Watcher, error)

// Detect probes for the watch capability. A nil open uses fsnotify.NewWatcher.
func Detect(open Opener) Capability {
	if open == nil {
		open = fsnotify.NewWatcher
	}
	w, err := open()
	if err != nil {
		return Unavailable{Err: err}
	}
	return Available{FS: w}
}
