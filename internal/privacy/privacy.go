// Package privacy screens JSON request bodies for personal data. Some
// patterns reject the request outright; others are replaced by a salted,
// truncated hash so the value stays correlatable within a day.
package privacy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var ErrSensitiveData = errors.New("request contains sensitive data")

type pattern struct {
	name string
	re   *regexp.Regexp
}

var (
	blockedPatterns = []pattern{
		{"ssn", regexp.MustCompile(`\b\d{3}-?\d{2}-?\d{4}\b`)},
		{"credit_card", regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)},
		{"password", regexp.MustCompile(`(?i)(password|pwd)[\s:=]+\S+`)},
	}
	anonymizedPatterns = []pattern{
		{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
		{"phone", regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)},
	}
)

type Filter struct {
	now func() time.Time
}

func NewFilter() *Filter {
	return &Filter{now: time.Now}
}

// Check walks every key and string value and reports the first blocked
// pattern found.
func (f *Filter) Check(v interface{}) error {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, item := range t {
			if err := checkString(k); err != nil {
				return err
			}
			if err := f.Check(item); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, item := range t {
			if err := f.Check(item); err != nil {
				return err
			}
		}
	case string:
		return checkString(t)
	}
	return nil
}

func checkString(s string) error {
	for _, p := range blockedPatterns {
		if p.re.MatchString(s) {
			return fmt.Errorf("%w: %s", ErrSensitiveData, p.name)
		}
	}
	return nil
}

// Anonymize returns a copy of v with emails and phone numbers in string
// values replaced by [REDACTED:<hash>]. Keys are left alone.
func (f *Filter) Anonymize(v interface{}) interface{} {
	salt := f.now().Format("20060102")
	return anonymize(v, salt)
}

func anonymize(v interface{}, salt string) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = anonymize(item, salt)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = anonymize(item, salt)
		}
		return out
	case string:
		return AnonymizeString(t, salt)
	default:
		return v
	}
}

func AnonymizeString(s, salt string) string {
	for _, p := range anonymizedPatterns {
		s = p.re.ReplaceAllStringFunc(s, func(match string) string {
			return "[REDACTED:" + Hash(match, salt)[:8] + "]"
		})
	}
	return s
}

// Hash is the hex sha256 of value+salt.
func Hash(value, salt string) string {
	sum := sha256.Sum256([]byte(value + salt))
	return hex.EncodeToString(sum[:])
}

// Process checks and anonymizes a raw JSON body. Numbers keep their
// original text. Bodies that are not valid JSON are returned with an error
// that does not wrap ErrSensitiveData.
func (f *Filter) Process(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode body failed: %w", err)
	}
	if err := f.Check(payload); err != nil {
		return nil, err
	}
	out, err := json.Marshal(f.Anonymize(payload))
	if err != nil {
		return nil, fmt.Errorf("encode body failed: %w", err)
	}
	return out, nil
}
