// Package normalize turns raw model completions into a uniform field
// structure. Completions are expected to be JSON objects, possibly wrapped in
// markdown code fences; anything that fails to parse is preserved as raw text
// so an analysis never loses a perspective's output entirely.
package normalize

import (
	"encoding/json"
	"io"
	"strings"
	"unicode"
)

// Kind discriminates the two value shapes a field can hold.
type Kind int

const (
	KindScalar Kind = iota
	KindList
)

// Value is one field's content: a single string or a list of strings. JSON
// numbers, booleans, nulls, and nested objects are dropped during parsing;
// the perspective schemas only ever promise strings and string arrays.
type Value struct {
	Kind   Kind
	Scalar string
	List   []string
}

// Field pairs a key with its value, preserving the object's source order.
type Field struct {
	Key   string
	Value Value
}

// Result is one perspective's normalized output. When Parsed is false the
// completion was not a JSON object and Raw holds the verbatim text.
type Result struct {
	Parsed bool
	Raw    string
	fields []Field
	index  map[string]int
}

// Fields returns the parsed fields in their original object order.
func (r Result) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Ordered returns the fields arranged for display: the summary field first,
// the recommendation field last, everything else in source order between
// them. Only those two exact keys are moved; near matches such as
// "Recommendations" keep their place.
func (r Result) Ordered() []Field {
	var head, mid, tail []Field
	for _, f := range r.fields {
		switch lower := strings.ToLower(f.Key); {
		case lower == "summary":
			head = append(head, f)
		case lower == "recommendation":
			tail = append(tail, f)
		default:
			mid = append(mid, f)
		}
	}
	out := make([]Field, 0, len(r.fields))
	out = append(out, head...)
	out = append(out, mid...)
	return append(out, tail...)
}

// Get looks up a field by exact key.
func (r Result) Get(key string) (Value, bool) {
	i, ok := r.index[key]
	if !ok {
		return Value{}, false
	}
	return r.fields[i].Value, true
}

// Lookup finds the first field whose lowercased key equals the given
// lowercase name.
func (r Result) Lookup(lower string) (Value, bool) {
	for _, f := range r.fields {
		if strings.ToLower(f.Key) == lower {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Parse normalizes one completion. It never fails: unparseable input yields a
// Result with Parsed false and the original text in Raw.
func Parse(text string) Result {
	raw := Result{Raw: text}
	cleaned := clean(text)

	dec := json.NewDecoder(strings.NewReader(cleaned))
	tok, err := dec.Token()
	if err != nil {
		return raw
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return raw
	}

	var fields []Field
	index := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return raw
		}
		key, ok := keyTok.(string)
		if !ok {
			return raw
		}
		val, keep, err := decodeValue(dec)
		if err != nil {
			return raw
		}
		if !keep {
			continue
		}
		if i, dup := index[key]; dup {
			fields[i].Value = val
			continue
		}
		index[key] = len(fields)
		fields = append(fields, Field{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return raw
	}
	if _, err := dec.Token(); err != io.EOF {
		return raw
	}

	return Result{Parsed: true, Raw: text, fields: fields, index: index}
}

// clean strips markdown code fence markers. Models routinely fence their
// answer despite being told not to. Prose around the object is left alone;
// those completions fall through to the raw-text path.
func clean(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func decodeValue(dec *json.Decoder) (Value, bool, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, false, err
	}
	switch t := tok.(type) {
	case string:
		return Value{Kind: KindScalar, Scalar: t}, true, nil
	case json.Delim:
		switch t {
		case '[':
			items := []string{}
			for dec.More() {
				itemTok, err := dec.Token()
				if err != nil {
					return Value{}, false, err
				}
				switch item := itemTok.(type) {
				case string:
					items = append(items, item)
				case json.Delim:
					if err := skipCompound(dec); err != nil {
						return Value{}, false, err
					}
				}
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, false, err
			}
			return Value{Kind: KindList, List: items}, true, nil
		case '{':
			if err := skipCompound(dec); err != nil {
				return Value{}, false, err
			}
			return Value{}, false, nil
		}
	}
	// numbers, booleans, null
	return Value{}, false, nil
}

// skipCompound consumes tokens until the already-opened object or array
// closes.
func skipCompound(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

// Label renders a schema key for display: underscores become spaces and each
// word's first letter is uppercased, leaving the rest of the word untouched
// so acronyms like "UX" survive.
func Label(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// Glyph picks the bullet marker for a field based on its key. Match order
// matters: a key hitting an earlier group keeps that group's glyph.
func Glyph(key string) string {
	k := strings.ToLower(key)
	switch {
	case containsAny(k, "opportunit", "strength", "tailwind", "green"):
		return "+"
	case containsAny(k, "risk", "gap", "concern", "headwind", "weakness"):
		return "-"
	case containsAny(k, "flag", "critical", "attack", "vulnerab"):
		return "!"
	case strings.Contains(k, "question"):
		return "?"
	case strings.Contains(k, "recommend"):
		return ">"
	default:
		return "*"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
