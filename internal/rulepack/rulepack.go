// Package rulepack locates validation rule packs: directories of Lua
// checks, either shipped locally or fetched from GitHub and pinned to
// a commit in rulepacks.lock.
package rulepack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwright/cloudwright/internal/validate"
)

// Spec names one pack. GitHub empty means the pack already lives under
// the state directory.
type Spec struct {
	Name   string
	GitHub string
	Ref    string
}

// Load ensures every pack is present and returns their checks in
// configuration order.
func Load(ctx context.Context, stateDir string, packs []Spec) ([]validate.Script, error) {
	var scripts []validate.Script
	for _, p := range packs {
		dir, err := EnsurePack(ctx, stateDir, p.Name, p.GitHub, p.Ref)
		if err != nil {
			return nil, err
		}
		found, err := Discover(p.Name, dir)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, found...)
	}
	return scripts, nil
}

// Discover lists the Lua checks of one pack directory. The script name
// is pack/file, which prefixes every finding rule the check reports.
// Order follows the file names.
func Discover(pack, dir string) ([]validate.Script, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("rulepack %s: %w", pack, err)
	}
	var scripts []validate.Script
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lua") {
			continue
		}
		scripts = append(scripts, validate.Script{
			Name: pack + "/" + strings.TrimSuffix(e.Name(), ".lua"),
			Path: filepath.Join(dir, e.Name()),
		})
	}
	return scripts, nil
}
