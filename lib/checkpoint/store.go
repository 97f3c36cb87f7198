/*package checkpoint stores named float64 datasets split into numbered slabs.

A store is a directory holding a manifest.yaml file and one binary file per
dataset. Datasets are declared once when the store is created. After that,
slabs can be appended to them, but a slab is never overwritten.
*/
package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	g_error "github.com/phil-mansfield/tracers/lib/error"
)

const ManifestName = "manifest.yaml"

var (
	// ErrMissingSlab is wrapped by errors from reads of unwritten slabs.
	ErrMissingSlab = errors.New("slab has not been written")
	// ErrSlabExists is wrapped by errors from writes to written slabs.
	ErrSlabExists = errors.New("slab has already been written")
	// ErrMissingDataset is wrapped by errors which name an unknown dataset.
	ErrMissingDataset = errors.New("dataset does not exist")
)

// Dataset declares a dataset when a store is created. SlabShape is the shape
// of a single slab, e.g. {NParticles, NComponents}.
type Dataset struct {
	Name      string
	SlabShape []int64
}

// manifestEntry is one dataset as it appears in manifest.yaml. Shape starts
// with the number of slabs, which is one more than the largest slab written.
type manifestEntry struct {
	Name  string  `yaml:"name"`
	Shape []int64 `yaml:"shape"`
	File  string  `yaml:"file"`
}

type manifest struct {
	Version  int             `yaml:"version"`
	Datasets []manifestEntry `yaml:"datasets"`
}

// Store is an open checkpoint directory. It is safe for concurrent use.
type Store struct {
	dir string

	mu    sync.Mutex
	man   manifest
	files map[string]*datasetFile
}

// Create creates a new store in dir with the given datasets. dir is created
// if needed, but it must not already hold a store.
func Create(dir string, datasets []Dataset) (*Store, error) {
	if _, err := os.Stat(filepath.Join(dir, ManifestName)); err == nil {
		return nil, g_error.Config("A checkpoint store already exists in "+
			"%s. Remove it or pick a different directory.", dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, g_error.Config("Could not create checkpoint directory "+
			"%s: %w", dir, err)
	}

	s := &Store{
		dir: dir, man: manifest{Version: Version},
		files: map[string]*datasetFile{},
	}
	seen := map[string]bool{}
	for _, ds := range datasets {
		if ds.Name == "" {
			return nil, g_error.Config("Checkpoint datasets need names.")
		} else if seen[ds.Name] {
			return nil, g_error.Config("Checkpoint dataset %s was declared "+
				"twice.", ds.Name)
		}
		for _, n := range ds.SlabShape {
			if n <= 0 {
				return nil, g_error.Config("Dataset %s has slab shape %v, "+
					"but every dimension must be positive.", ds.Name,
					ds.SlabShape)
			}
		}
		seen[ds.Name] = true

		file := fileName(ds.Name)
		fname := filepath.Join(dir, file)
		if err := createDatasetFile(fname, ds.SlabShape); err != nil {
			return nil, g_error.Config("Could not create dataset %s: %w",
				ds.Name, err)
		}
		df, err := openDatasetFile(fname)
		if err != nil { return nil, err }

		s.files[ds.Name] = df
		shape := append([]int64{ 0 }, ds.SlabShape...)
		s.man.Datasets = append(s.man.Datasets,
			manifestEntry{ Name: ds.Name, Shape: shape, File: file })
	}

	if err := s.writeManifest(); err != nil { return nil, err }
	return s, nil
}

// Open opens an existing store.
func Open(dir string) (*Store, error) {
	fname := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, g_error.Config("Could not read checkpoint manifest: %w",
			err)
	}

	s := &Store{ dir: dir, files: map[string]*datasetFile{} }
	if err := yaml.Unmarshal(data, &s.man); err != nil {
		return nil, g_error.Config("Could not parse checkpoint manifest "+
			"%s: %w", fname, err)
	}
	if s.man.Version > Version {
		return nil, g_error.Config("The checkpoint in %s was written with "+
			"version %d, but this code only reads versions up to %d.",
			dir, s.man.Version, Version)
	}

	for i, ent := range s.man.Datasets {
		if len(ent.Shape) == 0 {
			return nil, g_error.Config("Dataset %s has no shape in %s.",
				ent.Name, fname)
		}
		df, err := openDatasetFile(filepath.Join(dir, ent.File))
		if err != nil {
			return nil, g_error.Config("Could not open dataset %s: %w",
				ent.Name, err)
		}
		if !shapeEqual(df.shape, ent.Shape[1:]) {
			return nil, g_error.Config("Dataset %s has slab shape %v in "+
				"the manifest but %v in %s.", ent.Name, ent.Shape[1:],
				df.shape, ent.File)
		}
		// The manifest is rewritten after every slab, but a crash between
		// the append and the rewrite leaves it behind the file.
		s.man.Datasets[i].Shape[0] = numSlabs(df)
		s.files[ent.Name] = df
	}

	return s, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

// Datasets returns the names of all datasets in the order they were declared.
func (s *Store) Datasets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.man.Datasets))
	for i := range s.man.Datasets {
		out[i] = s.man.Datasets[i].Name
	}
	return out
}

// Shape returns the full shape of a dataset, [numSlabs, slab shape...].
func (s *Store) Shape(name string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.entry(name)
	if err != nil { return nil, err }
	return append([]int64{}, s.man.Datasets[i].Shape...), nil
}

// Has returns true if the given slab of the given dataset has been written.
func (s *Store) Has(name string, slab int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	df, ok := s.files[name]
	return ok && df.has(int64(slab))
}

// Slabs returns the written slabs of a dataset in ascending order.
func (s *Store) Slabs(name string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.entry(name); err != nil { return nil, err }
	df := s.files[name]
	out := make([]int, 0, len(df.offsets))
	for slab := range df.offsets {
		out = append(out, int(slab))
	}
	sort.Ints(out)
	return out, nil
}

// Write writes one slab of a dataset. data must have exactly as many values as
// a slab.
func (s *Store) Write(name string, slab int, data []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.entry(name)
	if err != nil { return err }
	df := s.files[name]

	if slab < 0 {
		return g_error.Config("Slab %d of dataset %s is negative.",
			slab, name)
	} else if int64(len(data)) != df.slabSize() {
		return g_error.Config("A slab of dataset %s has %d values, but %d "+
			"were given.", name, df.slabSize(), len(data))
	} else if df.has(int64(slab)) {
		return g_error.Config("Could not write slab %d of dataset %s: %w",
			slab, name, ErrSlabExists)
	}

	if err := df.appendSlab(int64(slab), data); err != nil {
		return g_error.Config("Could not write slab %d of dataset %s: %w",
			slab, name, err)
	}
	if shape := s.man.Datasets[i].Shape; int64(slab) >= shape[0] {
		shape[0] = int64(slab) + 1
	}
	return s.writeManifest()
}

// Read reads one slab of a dataset into out, which must have exactly as many
// values as a slab.
func (s *Store) Read(name string, slab int, out []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.entry(name); err != nil { return err }
	df := s.files[name]

	if int64(len(out)) != df.slabSize() {
		return g_error.Config("A slab of dataset %s has %d values, but the "+
			"output buffer has length %d.", name, df.slabSize(), len(out))
	} else if !df.has(int64(slab)) {
		return g_error.Config("Could not read slab %d of dataset %s: %w",
			slab, name, ErrMissingSlab)
	}

	if err := df.readSlab(int64(slab), out); err != nil {
		return g_error.Config("Could not read slab %d of dataset %s: %w",
			slab, name, err)
	}
	return nil
}

func (s *Store) entry(name string) (int, error) {
	for i := range s.man.Datasets {
		if s.man.Datasets[i].Name == name { return i, nil }
	}
	return -1, g_error.Config("Checkpoint dataset %s: %w",
		name, ErrMissingDataset)
}

// writeManifest replaces manifest.yaml with the current manifest.
func (s *Store) writeManifest() error {
	data, err := yaml.Marshal(&s.man)
	if err != nil { return err }

	fname := filepath.Join(s.dir, ManifestName)
	tmp := fname + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing checkpoint manifest: %w", err)
	}
	if err := os.Rename(tmp, fname); err != nil {
		return fmt.Errorf("writing checkpoint manifest: %w", err)
	}
	return nil
}

// fileName turns a dataset name like "tracers0/state" into a file name.
func fileName(name string) string {
	return strings.ReplaceAll(name, "/", ".") + ".dat"
}

func numSlabs(df *datasetFile) int64 {
	n := int64(0)
	for slab := range df.offsets {
		if slab + 1 > n { n = slab + 1 }
	}
	return n
}

func shapeEqual(a, b []int64) bool {
	if len(a) != len(b) { return false }
	for i := range a {
		if a[i] != b[i] { return false }
	}
	return true
}
