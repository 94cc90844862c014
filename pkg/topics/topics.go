// Package topics loads the read-only topic hierarchy: an insertion-ordered
// mapping from a grouping key (e.g. a grade range) to topics, each with a
// list of subtopic names. The subject is taken from the source file name.
package topics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Topic is one named topic under a grouping key.
type Topic struct {
	Name      string   `json:"topic"`
	Subtopics []string `json:"subtopics"`
}

// Group is one grouping key and its topics, in file order.
type Group struct {
	Key    string
	Topics []Topic
}

// Hierarchy is the parsed, ordered topic tree for one subject.
type Hierarchy struct {
	Subject string
	Groups  []Group
}

// Summary reports aggregate hierarchy statistics.
type Summary struct {
	Subject        string   `json:"subject"`
	GroupKeys      []string `json:"group_keys"`
	TotalTopics    int      `json:"total_topics"`
	TotalSubtopics int      `json:"total_subtopics"`
}

// Entry is one flattened (group, topic, subtopic set) unit in hierarchy
// order, the granularity the discovery stage walks.
type Entry struct {
	GroupKey  string
	Subject   string
	Topic     string
	Subtopics []string
}

// Load parses the hierarchy file at path. Top-level keys keep their
// insertion order, which a plain map unmarshal would lose, so the top
// level is read token by token.
func Load(path string) (*Hierarchy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("topics: open %s: %w", path, err)
	}
	defer f.Close()

	h := &Hierarchy{
		Subject: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	dec := json.NewDecoder(f)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("topics: parse %s: %w", path, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("topics: %s: expected top-level object", path)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("topics: parse %s: %w", path, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("topics: %s: non-string grouping key", path)
		}
		var list []Topic
		if err := dec.Decode(&list); err != nil {
			return nil, fmt.Errorf("topics: %s: group %q: %w", path, key, err)
		}
		h.Groups = append(h.Groups, Group{Key: key, Topics: list})
	}

	return h, nil
}

// Entries flattens the hierarchy into discovery order.
func (h *Hierarchy) Entries() []Entry {
	var entries []Entry
	for _, g := range h.Groups {
		for _, t := range g.Topics {
			entries = append(entries, Entry{
				GroupKey:  g.Key,
				Subject:   h.Subject,
				Topic:     t.Name,
				Subtopics: t.Subtopics,
			})
		}
	}
	return entries
}

// SubtopicCount returns the total number of (topic, subtopic) pairs.
func (h *Hierarchy) SubtopicCount() int {
	n := 0
	for _, g := range h.Groups {
		for _, t := range g.Topics {
			n += len(t.Subtopics)
		}
	}
	return n
}

// Summarize reports aggregate hierarchy statistics.
func (h *Hierarchy) Summarize() Summary {
	s := Summary{Subject: h.Subject}
	for _, g := range h.Groups {
		s.GroupKeys = append(s.GroupKeys, g.Key)
		s.TotalTopics += len(g.Topics)
	}
	s.TotalSubtopics = h.SubtopicCount()
	return s
}
