package index

import (
	"encoding/binary"
	"encoding/hex"
	"hash/fnv"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/record"
)

// Result is one scored record.
type Result struct {
	Kind  record.Kind
	ID    int64
	Title string
	Name  string
	Text  string
	Score float64
}

// Snapshot is an immutable corpus view: the records in store order, one
// TF-IDF row per record, and the vocabulary learned from exactly those
// records. A published snapshot is never modified, so any number of
// goroutines may search it without locking.
type Snapshot struct {
	generation  uint64
	version     uint64
	fingerprint string
	builtAt     time.Time
	records     []record.Record
	rows        []SparseVector
	vocab       *Vocabulary
}

func buildSnapshot(records []record.Record, generation, version uint64, now time.Time) *Snapshot {
	docs := make([][]string, len(records))
	for i, r := range records {
		docs[i] = Tokenize(r.Text)
	}
	vocab := fit(docs)
	rows := make([]SparseVector, len(docs))
	for i, tokens := range docs {
		rows[i] = vocab.transform(tokens)
	}
	return &Snapshot{
		generation:  generation,
		version:     version,
		fingerprint: fingerprint(records),
		builtAt:     now,
		records:     records,
		rows:        rows,
		vocab:       vocab,
	}
}

// fingerprint hashes the ordered record contents. Two snapshots built from
// the same records share a fingerprint, on any replica.
func fingerprint(records []record.Record) string {
	h := fnv.New128a()
	var buf [8]byte
	for _, r := range records {
		h.Write([]byte(r.Kind))
		binary.LittleEndian.PutUint64(buf[:], uint64(r.ID))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(len(r.Text)))
		h.Write(buf[:])
		h.Write([]byte(r.Text))
		h.Write([]byte(r.Title))
		h.Write([]byte{0})
		h.Write([]byte(r.Name))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Generation increases by one with every successful rebuild.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Fingerprint identifies the snapshot's content.
func (s *Snapshot) Fingerprint() string { return s.fingerprint }

func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Len is the number of records in the snapshot.
func (s *Snapshot) Len() int { return len(s.records) }

// Terms is the vocabulary size.
func (s *Snapshot) Terms() int { return s.vocab.Len() }

// Search scores text against every row and returns at most topK results,
// best first. Equal scores keep snapshot order. topK <= 0 or an empty
// snapshot yields no results; topK beyond the corpus size is capped.
func (s *Snapshot) Search(text string, topK int) []Result {
	if topK <= 0 || len(s.records) == 0 {
		return []Result{}
	}
	q := s.vocab.transform(Tokenize(text))

	results := make([]Result, len(s.records))
	for i, r := range s.records {
		results[i] = Result{
			Kind:  r.Kind,
			ID:    r.ID,
			Title: r.Title,
			Name:  r.Name,
			Text:  r.Text,
			Score: cosine(q, s.rows[i]),
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results
}
