package main

import (
	"fmt"
	"io/ioutil"
	"path/filepath"

	"multiterm/config"
	"multiterm/kernel/fs"
	"multiterm/user"
	"multiterm/user/programs"
)

// loadImage returns the filesystem image selected by cfg together with the
// registry that resolves the entry points of the bundled programs. A host
// image must have been built by mkfsimg from the same programs.
func loadImage(cfg config.FS) ([]byte, *user.Registry, error) {
	r := user.NewRegistry()
	programs.Register(r)

	if cfg.Image != "" {
		image, err := ioutil.ReadFile(cfg.Image)
		if err != nil {
			return nil, nil, err
		}
		return image, r, nil
	}

	b := fs.NewBuilder()
	if err := programs.Populate(r, b); err != nil {
		return nil, nil, err
	}

	if cfg.ExtraDir != "" {
		if err := addDir(b, cfg.ExtraDir); err != nil {
			return nil, nil, err
		}
	}
	return b.Bytes(), r, nil
}

// addDir adds every regular file of dir to b in name order.
func addDir(b *fs.Builder, dir string) error {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !e.Mode().IsRegular() {
			continue
		}

		data, err := ioutil.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		if kerr := b.AddFile(e.Name(), data); kerr != nil {
			return fmt.Errorf("%s: %s", e.Name(), kerr.Message)
		}
	}
	return nil
}
