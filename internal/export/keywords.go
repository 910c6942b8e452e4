package export

import (
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// KeywordRecord is one line of a keyword import file
type KeywordRecord struct {
	Keyword  string `csv:"keyword"`
	Response string `csv:"response"`
}

// ReadKeywords parses a CSV with a keyword,response header. Lines with an
// empty keyword or response are skipped.
func ReadKeywords(r io.Reader) ([]KeywordRecord, error) {
	var records []KeywordRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, err
	}
	out := records[:0]
	for _, rec := range records {
		rec.Keyword = strings.TrimSpace(rec.Keyword)
		rec.Response = strings.TrimSpace(rec.Response)
		if rec.Keyword == "" || rec.Response == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
