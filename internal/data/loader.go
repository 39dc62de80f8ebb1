package data

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/suderio/skirmish/internal/action"
	"github.com/suderio/skirmish/internal/engine"
)

//go:embed builtin
var builtinFS embed.FS

// Loader reads encounters, combatant templates and catalogs. Directories are
// searched in order; the built-in library is the last fallback.
type Loader struct {
	sources []fs.FS
}

// NewLoader initializes a Loader with the given data directory fallback hierarchy
func NewLoader(dataDirs []string) *Loader {
	l := &Loader{}
	for _, dir := range dataDirs {
		if dir != "" {
			l.sources = append(l.sources, os.DirFS(dir))
		}
	}
	builtin, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		panic(err)
	}
	l.sources = append(l.sources, builtin)
	return l
}

// Slug turns a display name into the file name used for lookups.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// LoadEncounter reads an encounter by name from encounters/, or straight from
// disk when ref names an existing YAML file. In the latter case the file's
// directory is searched first for templates and catalogs.
func (l *Loader) LoadEncounter(ref string) (*Encounter, *Loader, error) {
	var enc Encounter
	if ext := filepath.Ext(ref); ext == ".yaml" || ext == ".yml" {
		if _, err := os.Stat(ref); err == nil {
			b, err := os.ReadFile(ref)
			if err != nil {
				return nil, nil, err
			}
			if err := yaml.Unmarshal(b, &enc); err != nil {
				return nil, nil, fmt.Errorf("failed to decode encounter %s: %w", ref, err)
			}
			scoped := &Loader{sources: append([]fs.FS{os.DirFS(filepath.Dir(ref))}, l.sources...)}
			return &enc, scoped, nil
		}
	}
	if err := l.load(path.Join("encounters", Slug(ref)+".yaml"), &enc); err != nil {
		return nil, nil, err
	}
	return &enc, l, nil
}

// LoadTemplate reads a combatant template from combatants/.
func (l *Loader) LoadTemplate(name string) (*engine.Combatant, error) {
	var c engine.Combatant
	if err := l.load(path.Join("combatants", Slug(name)+".yaml"), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadCatalog reads a shared catalog from catalogs/.
func (l *Loader) LoadCatalog(name string) (*action.Catalog, error) {
	c := action.NewCatalog()
	if err := l.load(path.Join("catalogs", Slug(name)+".yaml"), c); err != nil {
		return nil, err
	}
	c.Normalize()
	return c, nil
}

func (l *Loader) load(ref string, target any) error {
	for _, src := range l.sources {
		f, err := src.Open(ref)
		if err != nil {
			continue
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(target); err != nil {
			return fmt.Errorf("failed to decode yaml reference %s: %w", ref, err)
		}
		return nil
	}
	return fmt.Errorf("could not find %s in any data directory: %w", ref, engine.ErrNotFound)
}

// Build instantiates the roster and the merged, validated catalog. Every
// problem found is reported together.
func (l *Loader) Build(enc *Encounter) ([]*engine.Combatant, *action.Catalog, error) {
	catalog := action.NewCatalog()
	var errs []error
	for _, name := range enc.Catalogs {
		c, err := l.LoadCatalog(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		catalog.Merge(c)
	}
	inline := enc.Catalog
	catalog.Merge(&inline)
	if err := catalog.Validate(); err != nil {
		errs = append(errs, err)
	}

	var roster []*engine.Combatant
	seen := make(map[string]bool)
	for i := range enc.Combatants {
		entry := &enc.Combatants[i]
		spawned, err := l.spawn(entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("combatant %d: %w", i+1, err))
			continue
		}
		for _, c := range spawned {
			if seen[c.ID] {
				errs = append(errs, fmt.Errorf("combatant %s: duplicate id", c.ID))
				continue
			}
			seen[c.ID] = true
			errs = append(errs, check(c, catalog)...)
			roster = append(roster, c)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, nil, err
	}
	return roster, catalog, nil
}

func (l *Loader) spawn(entry *Entry) ([]*engine.Combatant, error) {
	base := &engine.Combatant{}
	if entry.Template != "" {
		t, err := l.LoadTemplate(entry.Template)
		if err != nil {
			return nil, err
		}
		base = t
	}
	if err := entry.decodeInto(base); err != nil {
		return nil, err
	}
	if base.ID == "" {
		switch {
		case base.Name != "":
			base.ID = Slug(base.Name)
		default:
			base.ID = Slug(entry.Template)
		}
	}
	if base.Name == "" {
		base.Name = base.ID
	}
	if base.HP == 0 {
		base.HP = base.MaxHP
	}

	n := max(1, entry.Count)
	out := make([]*engine.Combatant, 0, n)
	for i := 1; i <= n; i++ {
		c := base.Clone()
		if n > 1 {
			c.ID = fmt.Sprintf("%s-%d", base.ID, i)
			c.Name = fmt.Sprintf("%s %d", base.Name, i)
		}
		c.Normalize()
		out = append(out, c)
	}
	return out, nil
}

func check(c *engine.Combatant, catalog *action.Catalog) []error {
	var errs []error
	if c.ID == "" {
		errs = append(errs, errors.New("combatant without id or name"))
	}
	if c.MaxHP <= 0 {
		errs = append(errs, fmt.Errorf("combatant %s: max_hp must be positive", c.ID))
	}
	if !c.Faction.Valid() {
		errs = append(errs, fmt.Errorf("combatant %s: unknown faction %q", c.ID, c.Faction))
	}
	if !c.Weapon.DamageType.Valid() {
		errs = append(errs, fmt.Errorf("combatant %s: unknown weapon damage type %q", c.ID, c.Weapon.DamageType))
	}
	for _, s := range c.Skills {
		if _, ok := catalog.Skills[s]; !ok {
			errs = append(errs, fmt.Errorf("combatant %s: unknown skill %q", c.ID, s))
		}
	}
	for _, item := range engine.SortedIDs(c.Inventory) {
		if _, ok := catalog.Items[item]; !ok {
			errs = append(errs, fmt.Errorf("combatant %s: unknown item %q", c.ID, item))
		}
	}
	return errs
}
