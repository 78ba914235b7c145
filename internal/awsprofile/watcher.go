package awsprofile

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to the AWS config file so the UI can refresh its
// profile list when profiles are added or removed out of band.
type Watcher struct {
	fsw     *fsnotify.Watcher
	Changed chan struct{}
}

// Watch starts watching the AWS config file. The parent directory is
// watched rather than the file itself because editors and the AWS CLI
// replace the file on write, which would otherwise drop the watch.
func Watch(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, Changed: make(chan struct{}, 1)}
	base := filepath.Base(path)
	go func() {
		for {
			select {
			case evt, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Base(evt.Name) != base {
					continue
				}
				if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				// Coalesce bursts: a pending notification is enough.
				select {
				case w.Changed <- struct{}{}:
				default:
				}
			case _, ok := <-fsw.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return w, nil
}

// Close stops the watcher. The Changed channel is not closed; callers
// simply stop receiving.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
