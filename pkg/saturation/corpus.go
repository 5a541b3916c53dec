package saturation

// ProjectMeta describes an existing project in the reference corpus.
type ProjectMeta struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Entry is one named reference embedding.
type Entry struct {
	Name      string
	Embedding []float64
}

// Corpus is an ordered set of project embeddings plus optional metadata.
// Iteration order is insertion order; it breaks similarity ties.
type Corpus struct {
	entries []Entry
	index   map[string]int
	meta    map[string]ProjectMeta
}

// NewCorpus returns an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{index: make(map[string]int), meta: make(map[string]ProjectMeta)}
}

// Add appends an embedding. Re-adding a name replaces its vector in place.
func (c *Corpus) Add(name string, embedding []float64) {
	if i, ok := c.index[name]; ok {
		c.entries[i].Embedding = embedding
		return
	}
	c.index[name] = len(c.entries)
	c.entries = append(c.entries, Entry{Name: name, Embedding: embedding})
}

// SetMeta records metadata for name; names without an embedding are kept but never matched.
func (c *Corpus) SetMeta(m ProjectMeta) {
	c.meta[m.Name] = m
}

// Meta returns the metadata for name.
func (c *Corpus) Meta(name string) (ProjectMeta, bool) {
	m, ok := c.meta[name]
	return m, ok
}

// Entries returns the embeddings in insertion order.
func (c *Corpus) Entries() []Entry {
	if c == nil {
		return nil
	}
	return c.entries
}

// Len is the number of embeddings.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}
