// Package library stores program sources by name in a LevelDB database and
// caches their parsed form.
package library

import (
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/bouncegrid/bounce/pkg/ast"
	"github.com/bouncegrid/bounce/pkg/parser"
)

// UnparsedName holds the annotated text of the last import that failed to
// parse, so the user's input is never lost.
const UnparsedName = "_unparsed"

const keyPrefix = "program/"

// ErrNotFound is returned when no program is stored under a name.
var ErrNotFound = errors.New("program not found")

// Library is a program store. It is safe for concurrent use.
type Library struct {
	db    *leveldb.DB
	cache *lru.ARCCache // name -> *ast.Program
}

// Open opens or creates the library at path.
func Open(path string, cacheSize int) (*Library, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open library %s: %w", path, err)
	}
	return newLibrary(db, cacheSize)
}

// OpenMem opens a library held in memory.
func OpenMem(cacheSize int) (*Library, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return newLibrary(db, cacheSize)
}

func newLibrary(db *leveldb.DB, cacheSize int) (*Library, error) {
	cache, err := lru.NewARC(cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("library cache: %w", err)
	}
	return &Library{db: db, cache: cache}, nil
}

// Close closes the database.
func (l *Library) Close() error {
	return l.db.Close()
}

func key(name string) []byte { return []byte(keyPrefix + name) }

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("program name is empty")
	}
	return nil
}

// Save stores source under name, replacing any previous source.
func (l *Library) Save(name, source string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := l.db.Put(key(name), []byte(source), nil); err != nil {
		return fmt.Errorf("save %q: %w", name, err)
	}
	l.cache.Remove(name)
	return nil
}

// Source returns the stored source of name.
func (l *Library) Source(name string) (string, error) {
	data, err := l.db.Get(key(name), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read %q: %w", name, err)
	}
	return string(data), nil
}

// Load returns the parsed program stored under name.
func (l *Library) Load(name string) (*ast.Program, error) {
	if v, ok := l.cache.Get(name); ok {
		return v.(*ast.Program), nil
	}
	src, err := l.Source(name)
	if err != nil {
		return nil, err
	}
	prog, err := parser.ParseProgram(parser.StripAnnotations(src), name)
	if err != nil {
		return nil, err
	}
	l.cache.Add(name, prog)
	return prog, nil
}

// List returns the stored names in key order.
func (l *Library) List() ([]string, error) {
	it := l.db.NewIterator(util.BytesPrefix([]byte(keyPrefix)), nil)
	defer it.Release()
	var names []string
	for it.Next() {
		names = append(names, strings.TrimPrefix(string(it.Key()), keyPrefix))
	}
	return names, it.Error()
}

// Delete removes name. Deleting a missing name returns ErrNotFound.
func (l *Library) Delete(name string) error {
	ok, err := l.db.Has(key(name), nil)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	l.cache.Remove(name)
	return l.db.Delete(key(name), nil)
}

// Import parses every def block in source and stores each under its
// program name, atomically. Annotations left by a previous failed import
// are removed first. When source does not parse, the annotated text is
// stored under UnparsedName and the parse error is returned.
func (l *Library) Import(source, filename string) ([]string, error) {
	progs, err := parser.ParseMultiplePrograms(parser.StripAnnotations(source), filename)
	if err != nil {
		if serr := l.Save(UnparsedName, parser.AnnotateError(source, err)); serr != nil {
			return nil, errors.Join(err, serr)
		}
		return nil, err
	}

	batch := new(leveldb.Batch)
	names := make([]string, 0, len(progs))
	for _, p := range progs {
		if err := checkName(p.Name); err != nil {
			return nil, err
		}
		batch.Put(key(p.Name), []byte(p.Source))
		names = append(names, p.Name)
	}
	if err := l.db.Write(batch, nil); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	for _, p := range progs {
		l.cache.Add(p.Name, p)
	}
	return names, nil
}
