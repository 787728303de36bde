package geometry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/cleverkeys/swipedecoder/internal/vocab"
)

// layoutFile is the on-disk JSON shape for a key layout file:
//
//	{"width": 1080, "height": 360, "keys": {"a": [54, 180], ...}}
type layoutFile struct {
	Width  float32            `json:"width"`
	Height float32            `json:"height"`
	Keys   map[string][2]float32 `json:"keys"`
}

// Watcher hot-reloads a key layout file on write, mirroring the teacher's
// internal/watcher debounced fsnotify loop.
type Watcher struct {
	fw   *fsnotify.Watcher
	path string
	geo  *Geometry
	v    *vocab.Vocabulary
}

// WatchLayout loads path once synchronously, then starts watching it for
// further writes. Reloads happen only while Run is running; close the done
// channel passed to Run to stop watching.
func WatchLayout(geo *Geometry, v *vocab.Vocabulary, path string) (*Watcher, error) {
	if err := loadLayoutFile(geo, v, path); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("geometry: fsnotify: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("geometry: watch %s: %w", path, err)
	}
	return &Watcher{fw: fw, path: path, geo: geo, v: v}, nil
}

// Run blocks, debouncing write events and reloading the layout file, until
// done is closed.
func (w *Watcher) Run(done <-chan struct{}) error {
	var pending *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-done:
			return w.fw.Close()
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(150*time.Millisecond, func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})
			}
		case <-reload:
			if err := loadLayoutFile(w.geo, w.v, w.path); err != nil {
				fmt.Fprintf(os.Stderr, "geometry: reload %s: %v\n", w.path, err)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "geometry: watch error: %v\n", err)
		}
	}
}

func loadLayoutFile(geo *Geometry, v *vocab.Vocabulary, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("geometry: read %s: %w", path, err)
	}
	var lf layoutFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return fmt.Errorf("geometry: parse %s: %w", path, err)
	}
	centers := make(map[rune]Point, len(lf.Keys))
	for k, xy := range lf.Keys {
		r := []rune(k)
		if len(r) != 1 {
			continue
		}
		centers[r[0]] = Point{X: xy[0], Y: xy[1]}
	}
	return geo.SetLayout(v, centers, lf.Width, lf.Height)
}
