package keywords

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// canonicalJSON: формат канонического ответа в файле.
type canonicalJSON struct {
	Content string       `json:"content,omitempty"`
	Files   []Attachment `json:"files,omitempty"`
	IsMeme  bool         `json:"isMeme,omitempty"`
}

type pair struct {
	key   string
	value json.RawMessage
}

// options: разобранный документ настроек. Порядок ключей сохраняется.
type options struct {
	prefix  string
	roleID  string
	keys    []string
	entries map[string]Entry
}

type ocrTrigger struct {
	Trigger string `json:"trigger"`
	Target  string `json:"target"`
}

// readObject читает JSON-объект верхнего уровня, сохраняя порядок ключей
// (map из encoding/json порядок теряет).
func readObject(data []byte) ([]pair, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected json object")
	}
	var out []pair
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		out = append(out, pair{key: key, value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func writeObject(pairs []pair) ([]byte, error) {
	var compact bytes.Buffer
	compact.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			compact.WriteByte(',')
		}
		k, err := json.Marshal(p.key)
		if err != nil {
			return nil, err
		}
		compact.Write(k)
		compact.WriteByte(':')
		compact.Write(p.value)
	}
	compact.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "\t"); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func decodeOptions(data []byte) (options, []string, error) {
	opts := options{prefix: DefaultPrefix, entries: make(map[string]Entry)}
	pairs, err := readObject(data)
	if err != nil {
		return opts, nil, err
	}
	var warnings []string
	seen := make(map[string]bool)
	for _, p := range pairs {
		raw := bytes.TrimSpace(p.value)
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}

		if IsReserved(p.key) {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return opts, nil, fmt.Errorf("%s must be a string: %w", p.key, err)
			}
			if strings.EqualFold(p.key, KeyPrefix) {
				opts.prefix = s
			} else {
				opts.roleID = s
			}
			continue
		}

		lower := strings.ToLower(p.key)
		if seen[lower] {
			warnings = append(warnings, fmt.Sprintf("duplicate keyword %q ignored", p.key))
			continue
		}

		var e Entry
		switch raw[0] {
		case '"':
			var target string
			if err := json.Unmarshal(raw, &target); err != nil {
				return opts, nil, fmt.Errorf("alias %q: %w", p.key, err)
			}
			e = Entry{Kind: KindAlias, Target: target}
		case '{':
			var c canonicalJSON
			if err := json.Unmarshal(raw, &c); err != nil {
				return opts, nil, fmt.Errorf("keyword %q: %w", p.key, err)
			}
			e = Entry{Kind: KindCanonical, Content: c.Content, Files: c.Files, IsMeme: c.IsMeme}
		default:
			return opts, nil, fmt.Errorf("keyword %q: unsupported value %s", p.key, raw)
		}
		seen[lower] = true
		opts.keys = append(opts.keys, p.key)
		opts.entries[p.key] = e
	}
	return opts, warnings, nil
}

func encodeOptions(opts options) ([]byte, error) {
	pairs := make([]pair, 0, len(opts.keys)+2)
	for _, kv := range [][2]string{{KeyPrefix, opts.prefix}, {KeyRoleID, opts.roleID}} {
		b, err := json.Marshal(kv[1])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair{key: kv[0], value: b})
	}
	for _, k := range opts.keys {
		e := opts.entries[k]
		var v any
		if e.IsAlias() {
			v = e.Target
		} else {
			v = canonicalJSON{Content: e.Content, Files: e.Files, IsMeme: e.IsMeme}
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("keyword %q: %w", k, err)
		}
		pairs = append(pairs, pair{key: k, value: b})
	}
	return writeObject(pairs)
}

func decodeOCR(data []byte) ([]ocrTrigger, error) {
	pairs, err := readObject(data)
	if err != nil {
		return nil, err
	}
	out := make([]ocrTrigger, 0, len(pairs))
	seen := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		var target string
		if err := json.Unmarshal(p.value, &target); err != nil {
			return nil, fmt.Errorf("ocr trigger %q: %w", p.key, err)
		}
		trigger := NormalizeTrigger(p.key)
		if trigger == "" || seen[trigger] {
			continue
		}
		seen[trigger] = true
		out = append(out, ocrTrigger{Trigger: trigger, Target: target})
	}
	return out, nil
}

func encodeOCR(triggers []ocrTrigger) ([]byte, error) {
	pairs := make([]pair, 0, len(triggers))
	for _, t := range triggers {
		b, err := json.Marshal(t.Target)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair{key: t.Trigger, value: b})
	}
	return writeObject(pairs)
}
