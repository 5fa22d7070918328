package apps

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	logx "appsched/pkg/logx"
)

const defaultCacheTTL = 30 * time.Second

// DesktopDirectory scans XDG application directories for .desktop entries.
// Scans are cached with a short TTL; List is called on every presentation
// refresh and a full directory walk per call would be wasteful.
type DesktopDirectory struct {
	log  logx.Logger
	dirs []string
	ttl  time.Duration

	mu      sync.Mutex
	cache   []App
	paths   map[string]string // entry id -> desktop file path
	expires time.Time
}

type DirectoryOption func(*DesktopDirectory)

// WithDirs replaces the XDG default search path.
func WithDirs(dirs []string) DirectoryOption {
	return func(d *DesktopDirectory) {
		if len(dirs) > 0 {
			d.dirs = append([]string(nil), dirs...)
		}
	}
}

func WithCacheTTL(ttl time.Duration) DirectoryOption {
	return func(d *DesktopDirectory) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

func NewDesktopDirectory(log logx.Logger, opts ...DirectoryOption) *DesktopDirectory {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &DesktopDirectory{
		log:  log,
		dirs: xdgApplicationDirs(),
		ttl:  defaultCacheTTL,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func xdgApplicationDirs() []string {
	var dirs []string
	if home := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); home != "" {
		dirs = append(dirs, filepath.Join(home, "applications"))
	} else if h, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(h, ".local", "share", "applications"))
	}
	data := strings.TrimSpace(os.Getenv("XDG_DATA_DIRS"))
	if data == "" {
		data = "/usr/local/share:/usr/share"
	}
	for _, d := range strings.Split(data, ":") {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, filepath.Join(d, "applications"))
		}
	}
	return dirs
}

func (d *DesktopDirectory) List(ctx context.Context) ([]App, error) {
	apps, _, err := d.snapshot(ctx)
	return apps, err
}

func (d *DesktopDirectory) Resolve(ctx context.Context, id string) (Handle, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotInstalled
	}
	_, paths, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	path, ok := paths[id]
	if !ok {
		return nil, ErrNotInstalled
	}
	return &desktopHandle{id: id, path: path, log: d.log}, nil
}

func (d *DesktopDirectory) snapshot(ctx context.Context) ([]App, map[string]string, error) {
	now := time.Now()
	d.mu.Lock()
	if d.cache != nil && now.Before(d.expires) {
		apps, paths := d.cache, d.paths
		d.mu.Unlock()
		return apps, paths, nil
	}
	d.mu.Unlock()

	apps, paths, err := d.scan(ctx)
	if err != nil {
		return nil, nil, err
	}

	d.mu.Lock()
	d.cache = apps
	d.paths = paths
	d.expires = now.Add(d.ttl)
	d.mu.Unlock()
	return apps, paths, nil
}

func (d *DesktopDirectory) scan(ctx context.Context) ([]App, map[string]string, error) {
	paths := map[string]string{}
	var apps []App
	for _, dir := range d.dirs {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			// absent directories are normal on most hosts
			continue
		}
		for _, ent := range entries {
			if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".desktop") {
				continue
			}
			id := strings.TrimSuffix(ent.Name(), ".desktop")
			if _, seen := paths[id]; seen {
				// earlier dirs take precedence per XDG lookup order
				continue
			}
			path := filepath.Join(dir, ent.Name())
			entry, err := parseDesktopEntry(path)
			if err != nil {
				d.log.Debug("skipping unreadable desktop entry", logx.String("path", path), logx.Err(err))
				continue
			}
			if !entry.launchable() {
				continue
			}
			paths[id] = path
			apps = append(apps, App{ID: id, Name: entry.name, Icon: entry.icon})
		}
	}
	sort.Slice(apps, func(i, j int) bool {
		return strings.ToLower(apps[i].Name) < strings.ToLower(apps[j].Name)
	})
	return apps, paths, nil
}

type desktopEntry struct {
	typ       string
	name      string
	icon      string
	exec      string
	noDisplay bool
	hidden    bool
}

func (e desktopEntry) launchable() bool {
	return e.typ == "Application" && e.name != "" && e.exec != "" && !e.noDisplay && !e.hidden
}

// parseDesktopEntry reads the [Desktop Entry] section of a .desktop file.
// Localized keys (Name[xx]) are ignored; the unlocalized value wins.
func parseDesktopEntry(path string) (desktopEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return desktopEntry{}, err
	}
	defer f.Close()

	var (
		e         desktopEntry
		inSection bool
	)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			inSection = line == "[Desktop Entry]"
			continue
		}
		if !inSection {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Type":
			e.typ = strings.TrimSpace(val)
		case "Name":
			e.name = strings.TrimSpace(val)
		case "Icon":
			e.icon = strings.TrimSpace(val)
		case "Exec":
			e.exec = strings.TrimSpace(val)
		case "NoDisplay":
			e.noDisplay = strings.EqualFold(strings.TrimSpace(val), "true")
		case "Hidden":
			e.hidden = strings.EqualFold(strings.TrimSpace(val), "true")
		}
	}
	return e, sc.Err()
}

type desktopHandle struct {
	id   string
	path string
	log  logx.Logger
}

func (h *desktopHandle) Launch(ctx context.Context) error {
	if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return fmt.Errorf("%w: no graphical session", ErrLaunchBlocked)
	}

	// Prefer gtk-launch (resolves the entry id through the same XDG rules);
	// fall back to gio for hosts without the GTK tools.
	var cmd *exec.Cmd
	if _, err := exec.LookPath("gtk-launch"); err == nil {
		cmd = exec.Command("gtk-launch", h.id)
	} else if _, err := exec.LookPath("gio"); err == nil {
		cmd = exec.Command("gio", "launch", h.path)
	} else {
		return fmt.Errorf("%w: no launcher binary available", ErrLaunchBlocked)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	// Deliberately not CommandContext: the launched application must outlive
	// the handler invocation that started it.
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrLaunchBlocked, err)
	}
	go func() { _ = cmd.Wait() }()
	h.log.Debug("application launched", logx.String("app_id", h.id))
	return nil
}
