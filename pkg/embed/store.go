// Package embed supplies embedding vectors for signals: precomputed vectors
// from JSON fixtures, an OpenAI-compatible embeddings client, and a resolver
// that falls back to a zero vector when neither has one.
package embed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/elonfeng/narradar/pkg/saturation"
)

// DefaultDim is the vector size assumed when no vector has been seen.
const DefaultDim = 384

// Store holds named vectors in the order they were added.
type Store struct {
	keys    []string
	vectors map[string][]float64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{vectors: make(map[string][]float64)}
}

// LoadStore reads a JSON object of key -> vector, keeping file order. A
// missing file yields an empty store.
func LoadStore(path string) (*Store, error) {
	s := NewStore()
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open embeddings %s: %w", path, err)
	}
	defer f.Close()

	err = decodeOrdered(f, func(key string, vec []float64) {
		s.Put(key, vec)
	})
	if err != nil {
		return nil, fmt.Errorf("parse embeddings %s: %w", path, err)
	}
	return s, nil
}

// Put stores vec under key, keeping the key's original position on overwrite.
func (s *Store) Put(key string, vec []float64) {
	if _, ok := s.vectors[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.vectors[key] = vec
}

// Get returns the vector for key.
func (s *Store) Get(key string) ([]float64, bool) {
	v, ok := s.vectors[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (s *Store) Keys() []string { return s.keys }

// Len is the number of stored vectors.
func (s *Store) Len() int { return len(s.keys) }

// Dim is the length of the first stored vector, or DefaultDim when empty.
func (s *Store) Dim() int {
	if len(s.keys) == 0 {
		return DefaultDim
	}
	return len(s.vectors[s.keys[0]])
}

// LoadCorpus builds the saturation corpus from an embeddings file
// (name -> vector) and a projects file (list of {name, url, description}).
// Missing files give an empty corpus.
func LoadCorpus(embeddingsPath, projectsPath string) (*saturation.Corpus, error) {
	vectors, err := LoadStore(embeddingsPath)
	if err != nil {
		return nil, err
	}

	corpus := saturation.NewCorpus()
	for _, k := range vectors.Keys() {
		v, _ := vectors.Get(k)
		corpus.Add(k, v)
	}

	data, err := os.ReadFile(projectsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return corpus, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read projects %s: %w", projectsPath, err)
	}
	var projects []saturation.ProjectMeta
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("parse projects %s: %w", projectsPath, err)
	}
	for _, p := range projects {
		corpus.SetMeta(p)
	}
	return corpus, nil
}

// decodeOrdered walks a JSON object of string -> number array token by token
// so callers see keys in document order.
func decodeOrdered(r io.Reader, fn func(key string, vec []float64)) error {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected key, got %v", tok)
		}
		var vec []float64
		if err := dec.Decode(&vec); err != nil {
			return fmt.Errorf("vector %q: %w", key, err)
		}
		fn(key, vec)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
