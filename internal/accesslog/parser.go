package accesslog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ip, timestamp, request, status, size, referrer, user agent. Prefix match:
// trailing fields (e.g. request time) are tolerated.
var linePattern = regexp.MustCompile(
	`^(\S+) \S+ \S+ \[(.*?)\] "(.*?)" (\d{3}) (\S+) "(.*?)" "(.*?)"`,
)

// ParseLine parses one raw line. ok is false when the line does not match.
func ParseLine(line string) (Record, bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Record{}, false
	}
	rec := Record{
		IP:        m[1],
		Timestamp: m[2],
		Status:    parseStatus(m[4]),
		Size:      parseSize(m[5]),
		Referrer:  m[6],
		UserAgent: m[7],
	}
	rec.Method, rec.Path = splitRequest(m[3])
	if t, err := time.Parse(TimestampLayout, rec.Timestamp); err == nil {
		rec.Datetime = &t
	}
	return rec, true
}

// Parse reads r line by line. Only read errors are returned; lines failing the
// grammar are counted in Result.Skipped.
func Parse(r io.Reader) (Result, error) {
	res := Result{Records: []Record{}}
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			res.add(line)
		}
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("read log: %w", err)
		}
	}
}

// ParseLines is Parse over an in-memory slice.
func ParseLines(lines []string) Result {
	res := Result{Records: []Record{}}
	for _, l := range lines {
		res.add(l)
	}
	return res
}

func (res *Result) add(line string) {
	line = strings.ToValidUTF8(line, "")
	if strings.TrimSpace(line) == "" {
		return
	}
	res.Lines++
	rec, ok := ParseLine(strings.TrimRight(line, "\r\n"))
	if !ok {
		res.Skipped++
		return
	}
	res.Records = append(res.Records, rec)
}

func splitRequest(req string) (method, path string) {
	parts := strings.Fields(req)
	if len(parts) < 2 {
		return UnknownMethod, req
	}
	return parts[0], parts[1]
}

func parseSize(s string) int64 {
	if s == "-" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseStatus(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return DefaultStatus
	}
	return n
}
