package features

import "github.com/viniciushammett/go-weblog-analyzer/internal/accesslog"

// Positions within a feature vector. The order is the training layout and is
// never derived from column names.
const (
	IPCode = iota
	MethodCode
	PathCode
	Status
	Size
	ReferrerCode
	UserAgentCode
	Hour

	Width
)

// Columns names each position, in order.
var Columns = [Width]string{
	"ip_code", "method_code", "path_code", "status",
	"size", "referrer_code", "user_agent_code", "hour",
}

type Matrix [][]float64

// Encode produces one vector per record, in input order. ok is false when
// there is nothing to encode.
func Encode(records []accesslog.Record, vocab VocabularySet) (Matrix, bool) {
	if len(records) == 0 {
		return nil, false
	}
	m := make(Matrix, len(records))
	for i, r := range records {
		m[i] = Vector(r, vocab)
	}
	return m, true
}

// Vector encodes a single record. Status and size are numeric already and
// pass through as parsed.
func Vector(r accesslog.Record, vocab VocabularySet) []float64 {
	v := make([]float64, Width)
	v[IPCode] = float64(vocab.lookup(ColIP, r.IP))
	v[MethodCode] = float64(vocab.lookup(ColMethod, r.Method))
	v[PathCode] = float64(vocab.lookup(ColPath, r.Path))
	v[Status] = float64(r.Status)
	v[Size] = float64(r.Size)
	v[ReferrerCode] = float64(vocab.lookup(ColReferrer, r.Referrer))
	v[UserAgentCode] = float64(vocab.lookup(ColUserAgent, r.UserAgent))
	v[Hour] = float64(r.Hour())
	return v
}

// Unseen counts, per column, values not present in the vocabulary. Columns
// without a vocabulary are not reported.
func Unseen(records []accesslog.Record, vocab VocabularySet) map[string]int {
	out := map[string]int{}
	for _, r := range records {
		for col, val := range map[string]string{
			ColIP: r.IP, ColMethod: r.Method, ColPath: r.Path,
			ColReferrer: r.Referrer, ColUserAgent: r.UserAgent,
		} {
			v, ok := vocab[col]
			if ok && !v.Contains(val) {
				out[col]++
			}
		}
	}
	return out
}
