package substitution

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// DefaultMatchThreshold is the minimum fuzzy score (exclusive) for a match.
const DefaultMatchThreshold = 0.90

var teacherNamespace = uuid.MustParse("7d0f4a0e-5b6c-4d8e-9a51-3c2f1e0b7a64")

// DirectoryOptions configures name resolution.
type DirectoryOptions struct {
	Matcher           Matcher
	Threshold         float64
	DefaultGradeLevel int
}

// Match describes how a name was resolved.
type Match struct {
	Input   string  `json:"input"`
	Key     string  `json:"key"`
	Score   float64 `json:"score"`
	Exact   bool    `json:"exact"`
	Learned bool    `json:"learned"`
}

// Directory holds canonical teacher identities and their name variations.
// It is built per run and is not safe for concurrent use.
type Directory struct {
	entries   []models.RosterEntry
	teachers  []*models.Teacher
	canonical []string
	byKey     map[string]*models.Teacher
	byPhone   map[string]*models.Teacher
	position  map[string]int
	learned   map[string][]string
	matcher   Matcher
	threshold float64
	anomalies []string
}

// NewDirectory builds a directory from roster rows. Rows whose name normalizes
// to an already known key are folded into the first teacher and reported as
// anomalies.
func NewDirectory(entries []models.RosterEntry, opts DirectoryOptions) *Directory {
	if opts.Matcher == nil {
		opts.Matcher = FuzzyMatcher{}
	}
	if opts.Threshold <= 0 || opts.Threshold >= 1 {
		opts.Threshold = DefaultMatchThreshold
	}

	d := &Directory{
		byKey:     make(map[string]*models.Teacher),
		byPhone:   make(map[string]*models.Teacher),
		position:  make(map[string]int),
		learned:   make(map[string][]string),
		matcher:   opts.Matcher,
		threshold: opts.Threshold,
	}

	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		key := NormalizeName(name)
		if key == "" {
			d.anomalies = append(d.anomalies, fmt.Sprintf("Roster entry %q has no usable name", entry.Name))
			continue
		}
		if existing, ok := d.byKey[key]; ok {
			d.anomalies = append(d.anomalies, fmt.Sprintf("Roster entry %q duplicates %q", name, existing.CanonicalName))
			d.addVariations(existing, entry.Variations)
			continue
		}

		grade := opts.DefaultGradeLevel
		if entry.GradeLevel != nil {
			grade = *entry.GradeLevel
		}
		id := entry.ID
		if id == "" {
			id = uuid.NewSHA1(teacherNamespace, []byte(key)).String()
			entry.ID = id
		}
		teacher := &models.Teacher{
			ID:            id,
			CanonicalName: name,
			Phone:         strings.TrimSpace(entry.Phone),
			IsSubstitute:  entry.IsSubstitute,
			GradeLevel:    grade,
			IsRegular:     entry.IsRegular,
		}

		d.position[id] = len(d.entries)
		entry.Variations = append([]string(nil), entry.Variations...)
		d.entries = append(d.entries, entry)
		d.teachers = append(d.teachers, teacher)
		d.canonical = append(d.canonical, key)
		d.byKey[key] = teacher
		if teacher.Phone != "" {
			if _, taken := d.byPhone[teacher.Phone]; !taken {
				d.byPhone[teacher.Phone] = teacher
			}
		}
		d.addVariations(teacher, entry.Variations)
	}
	return d
}

func (d *Directory) addVariations(t *models.Teacher, variations []string) {
	for _, v := range variations {
		v = strings.TrimSpace(v)
		key := NormalizeName(v)
		if key == "" {
			continue
		}
		if owner, ok := d.byKey[key]; ok && owner != t {
			d.anomalies = append(d.anomalies, fmt.Sprintf("Variation %q of %q already belongs to %q", v, t.CanonicalName, owner.CanonicalName))
			continue
		}
		d.byKey[key] = t
		if !containsFold(t.Variations, v) {
			t.Variations = append(t.Variations, v)
		}
	}
}

// Resolve maps an arbitrary name onto a teacher. Exact key matches win;
// otherwise the best fuzzy candidate above the threshold is accepted and the
// input is remembered as a new variation.
func (d *Directory) Resolve(name string) (*models.Teacher, Match, bool) {
	t, match, ok := d.Find(name)
	if !ok || match.Exact {
		return t, match, ok
	}

	d.byKey[match.Key] = t
	if !containsFold(t.Variations, match.Input) {
		t.Variations = append(t.Variations, match.Input)
		d.learned[t.ID] = append(d.learned[t.ID], match.Input)
		match.Learned = true
	}
	return t, match, true
}

// Find resolves name like Resolve without remembering fuzzy matches.
func (d *Directory) Find(name string) (*models.Teacher, Match, bool) {
	input := strings.TrimSpace(name)
	key := NormalizeName(input)
	match := Match{Input: input, Key: key}
	if key == "" {
		return nil, match, false
	}
	if t, ok := d.byKey[key]; ok {
		match.Score = 1
		match.Exact = true
		return t, match, true
	}

	var best *models.Teacher
	bestScore := 0.0
	for i, candidate := range d.canonical {
		score := d.matcher.Score(key, candidate)
		if score > bestScore {
			bestScore = score
			best = d.teachers[i]
		}
	}
	match.Score = bestScore
	if best == nil || bestScore <= d.threshold {
		return nil, match, false
	}
	return best, match, true
}

// Lookup returns the teacher whose canonical name or known variation
// normalizes to the same key as name.
func (d *Directory) Lookup(name string) (*models.Teacher, bool) {
	key := NormalizeName(name)
	if key == "" {
		return nil, false
	}
	t, ok := d.byKey[key]
	return t, ok
}

// ByPhone finds a teacher by exact phone number.
func (d *Directory) ByPhone(phone string) (*models.Teacher, bool) {
	t, ok := d.byPhone[strings.TrimSpace(phone)]
	return t, ok && phone != ""
}

// Teachers returns every teacher in roster order.
func (d *Directory) Teachers() []*models.Teacher {
	return d.teachers
}

// Substitutes returns the substitute pool in roster order.
func (d *Directory) Substitutes() []*models.Teacher {
	pool := make([]*models.Teacher, 0, len(d.teachers))
	for _, t := range d.teachers {
		if t.IsSubstitute {
			pool = append(pool, t)
		}
	}
	return pool
}

// Len reports the number of canonical teachers.
func (d *Directory) Len() int { return len(d.teachers) }

// Anomalies lists roster problems found while building the directory.
func (d *Directory) Anomalies() []string { return d.anomalies }

// Learned returns the variations registered by fuzzy matches, keyed by teacher ID.
func (d *Directory) Learned() map[string][]string { return d.learned }

// Roster returns the roster rows with learned variations appended, ready to
// be persisted.
func (d *Directory) Roster() []models.RosterEntry {
	out := make([]models.RosterEntry, len(d.entries))
	copy(out, d.entries)
	for id, variations := range d.learned {
		pos, ok := d.position[id]
		if !ok {
			continue
		}
		merged := append([]string(nil), out[pos].Variations...)
		for _, v := range variations {
			if !containsFold(merged, v) {
				merged = append(merged, v)
			}
		}
		out[pos].Variations = merged
	}
	return out
}

// Keys returns every normalized key known for a teacher, canonical first.
func Keys(t *models.Teacher) []string {
	if t == nil {
		return nil
	}
	keys := []string{NormalizeName(t.CanonicalName)}
	seen := map[string]bool{keys[0]: true}
	for _, v := range t.Variations {
		key := NormalizeName(v)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), value) {
			return true
		}
	}
	return false
}
