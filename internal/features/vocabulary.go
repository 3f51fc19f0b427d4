// Package features turns access-log records into the fixed-order numeric
// matrix the reconstruction model was trained on.
package features

// DefaultCode is returned for values missing from a vocabulary. It collides
// with the code of the first trained value: downstream, an unseen value and
// vocabulary entry 0 are indistinguishable. This mirrors how the model was
// trained and must not be changed without retraining.
const DefaultCode = 0

// Categorical column names as they appear in the vocabulary artifact.
const (
	ColIP        = "ip"
	ColMethod    = "method"
	ColPath      = "path"
	ColReferrer  = "referrer"
	ColUserAgent = "user_agent"
)

// CategoricalColumns lists the label-encoded columns.
var CategoricalColumns = []string{ColIP, ColMethod, ColPath, ColReferrer, ColUserAgent}

// Vocabulary is the ordered list of values seen for one column at training
// time; a value's code is its index.
type Vocabulary struct {
	values []string
	codes  map[string]int
}

func NewVocabulary(values []string) *Vocabulary {
	v := &Vocabulary{values: append([]string(nil), values...), codes: make(map[string]int, len(values))}
	for i, s := range v.values {
		if _, dup := v.codes[s]; !dup {
			v.codes[s] = i
		}
	}
	return v
}

// Lookup returns the trained code for value, or DefaultCode.
func (v *Vocabulary) Lookup(value string) int {
	if v == nil {
		return DefaultCode
	}
	if c, ok := v.codes[value]; ok {
		return c
	}
	return DefaultCode
}

// Contains reports whether value was seen at training time.
func (v *Vocabulary) Contains(value string) bool {
	if v == nil {
		return false
	}
	_, ok := v.codes[value]
	return ok
}

func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.values)
}

// VocabularySet maps a categorical column to its vocabulary. Missing columns
// encode every row as 0.
type VocabularySet map[string]*Vocabulary

func (s VocabularySet) lookup(col, value string) int {
	v, ok := s[col]
	if !ok {
		return 0
	}
	return v.Lookup(value)
}
