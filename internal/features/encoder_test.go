package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciushammett/go-weblog-analyzer/internal/accesslog"
)

func testVocab() VocabularySet {
	return VocabularySet{
		ColIP:        NewVocabulary([]string{"10.0.0.1", "10.0.0.2", "127.0.0.1"}),
		ColMethod:    NewVocabulary([]string{"GET", "POST"}),
		ColPath:      NewVocabulary([]string{"/", "/login", "/test"}),
		ColReferrer:  NewVocabulary([]string{"-", "http://ref/"}),
		ColUserAgent: NewVocabulary([]string{"Mozilla/5.0", "curl/7.0"}),
	}
}

func rec(ip, method, path string, status int, size int64, ref, ua string, hour int) accesslog.Record {
	t := time.Date(2023, 10, 10, hour, 0, 0, 0, time.FixedZone("", -7*3600))
	return accesslog.Record{
		IP: ip, Method: method, Path: path, Status: status, Size: size,
		Referrer: ref, UserAgent: ua, Datetime: &t,
	}
}

func TestEncodeFixedColumnOrder(t *testing.T) {
	m, ok := Encode([]accesslog.Record{
		rec("127.0.0.1", "POST", "/test", 404, 1234, "http://ref/", "curl/7.0", 13),
	}, testVocab())
	require.True(t, ok)
	require.Len(t, m, 1)
	assert.Equal(t, []float64{2, 1, 2, 404, 1234, 1, 1, 13}, m[0])
	assert.Equal(t, "ip_code", Columns[IPCode])
	assert.Equal(t, "hour", Columns[Hour])
	assert.Equal(t, 8, Width)
}

func TestEncodeUnseenIsDefaultAndIdempotent(t *testing.T) {
	v := testVocab()
	r := rec("8.8.8.8", "PROPFIND", "/etc/passwd", 200, 0, "evil", "sqlmap", 3)
	a := Vector(r, v)
	b := Vector(r, v)
	assert.Equal(t, a, b)
	for _, pos := range []int{IPCode, MethodCode, PathCode, ReferrerCode, UserAgentCode} {
		assert.EqualValues(t, DefaultCode, a[pos], Columns[pos])
	}
	// indistinguishable from the first trained value
	first := Vector(rec("10.0.0.1", "GET", "/", 200, 0, "-", "Mozilla/5.0", 3), v)
	assert.Equal(t, first, a)
}

func TestEncodeMissingVocabularies(t *testing.T) {
	partial := VocabularySet{ColMethod: NewVocabulary([]string{"GET", "POST"})}
	m, ok := Encode([]accesslog.Record{rec("127.0.0.1", "POST", "/test", 200, 5, "-", "curl/7.0", 1)}, partial)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1, 0, 200, 5, 0, 0, 1}, m[0])

	m, ok = Encode([]accesslog.Record{rec("127.0.0.1", "POST", "/test", 200, 5, "-", "curl/7.0", 1)}, nil)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 0, 200, 5, 0, 0, 1}, m[0])
}

func TestEncodeKeepsNumericStatusAndSize(t *testing.T) {
	r := accesslog.Record{IP: "x", Method: "GET", Path: "/", Status: 0, Size: -4}
	v := Vector(r, nil)
	assert.EqualValues(t, 0, v[Status])
	assert.EqualValues(t, -4, v[Size])
	assert.EqualValues(t, 0, v[Hour])
}

func TestEncodeClientClosedStatus(t *testing.T) {
	r, ok := accesslog.ParseLine(`10.0.0.1 - - [10/Oct/2023:13:55:36 +0000] "GET / HTTP/1.1" 000 5 "-" "curl/8.0"`)
	require.True(t, ok)
	require.Equal(t, 0, r.Status)
	v := Vector(r, testVocab())
	assert.EqualValues(t, 0, v[Status])
	assert.EqualValues(t, 5, v[Size])
}

func TestEncodeNoRecords(t *testing.T) {
	m, ok := Encode(nil, testVocab())
	assert.False(t, ok)
	assert.Nil(t, m)
}

func TestEncodePreservesOrder(t *testing.T) {
	recs := []accesslog.Record{
		rec("10.0.0.2", "GET", "/", 200, 1, "-", "Mozilla/5.0", 0),
		rec("10.0.0.1", "GET", "/", 200, 2, "-", "Mozilla/5.0", 0),
	}
	m, ok := Encode(recs, testVocab())
	require.True(t, ok)
	assert.EqualValues(t, 1, m[0][IPCode])
	assert.EqualValues(t, 0, m[1][IPCode])
	assert.EqualValues(t, 2, m[1][Size])
}

func TestVocabularyDuplicatesKeepFirstIndex(t *testing.T) {
	v := NewVocabulary([]string{"a", "b", "a"})
	assert.Equal(t, 0, v.Lookup("a"))
	assert.Equal(t, 1, v.Lookup("b"))
	assert.Equal(t, 3, v.Len())
	var nilVocab *Vocabulary
	assert.Equal(t, DefaultCode, nilVocab.Lookup("a"))
}

func TestUnseen(t *testing.T) {
	v := VocabularySet{ColIP: NewVocabulary([]string{"10.0.0.1"})}
	got := Unseen([]accesslog.Record{{IP: "10.0.0.1"}, {IP: "1.1.1.1"}, {IP: "2.2.2.2"}}, v)
	assert.Equal(t, map[string]int{ColIP: 2}, got)
}
