package ggconfigd

import (
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"
)

// LoadYAMLFile parses path as a YAML document of nested maps, the
// on-disk seed format SPEC_FULL.md describes for gg_config.
func LoadYAMLFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, ggerr.Wrap(ggerr.Config, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, ggerr.Wrap(ggerr.Parse, err)
	}
	return doc, nil
}

// WatchFile watches path for out-of-band edits and re-imports it into
// store on every write, logging failures rather than propagating them
// (a malformed on-disk edit must not take the daemon down).
func WatchFile(path string, store *Store, log *logrus.Entry) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ggerr.Wrap(ggerr.Fatal, err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, ggerr.Wrap(ggerr.Config, err)
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				doc, err := LoadYAMLFile(path)
				if err != nil {
					log.WithError(err).Warn("failed to reparse config file after change")
					continue
				}
				if err := store.ImportYAML(doc); err != nil {
					log.WithError(err).Warn("failed to reimport config file")
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("config file watch error")
			}
		}
	}()

	return w, nil
}
