// Package frontmatter splits and decodes the YAML header of a note.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document started with a YAML
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Document is a note separated into its raw header and Markdown body.
type Document struct {
	Header []byte
	Body   []byte
	// HasHeader is false when the note does not open with "---".
	HasHeader bool
}

// Split separates YAML frontmatter (`---` delimited) from the Markdown body.
// LF and CRLF notes are both accepted; the body keeps its original newlines.
func Split(content []byte) (Document, error) {
	nl := detectNewline(content)
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return Document{Body: content}, nil
	}

	start := len(open)
	if bytes.HasPrefix(content[start:], open) {
		return Document{Header: []byte{}, Body: content[start+len(open):], HasHeader: true}, nil
	}

	closeSeq := []byte(nl + "---" + nl)
	idx := bytes.Index(content[start:], closeSeq)
	if idx < 0 {
		// A closing delimiter on the final line without trailing newline.
		tail := []byte(nl + "---")
		if bytes.HasSuffix(content, tail) {
			end := len(content) - len(tail)
			return Document{Header: content[start : end+len(nl)], Body: []byte{}, HasHeader: true}, nil
		}
		return Document{}, ErrMissingClosingDelimiter
	}

	return Document{
		Header:    content[start : start+idx+len(nl)],
		Body:      content[start+idx+len(closeSeq):],
		HasHeader: true,
	}, nil
}

// Fields are the header keys the site builder understands. Unknown keys are ignored.
type Fields struct {
	Title     string     `yaml:"title"`
	Aliases   StringList `yaml:"aliases"`
	Permalink string     `yaml:"permalink"`
	Tags      StringList `yaml:"tags"`
	Draft     bool       `yaml:"draft"`
}

// Decode parses a raw header into Fields. An empty header yields zero Fields.
func Decode(header []byte) (Fields, error) {
	var f Fields
	if len(bytes.TrimSpace(header)) == 0 {
		return f, nil
	}
	if err := yaml.Unmarshal(header, &f); err != nil {
		return Fields{}, fmt.Errorf("decode frontmatter: %w", err)
	}
	return f, nil
}

// StringList accepts either a YAML sequence or a single scalar. A scalar may list
// several values separated by commas, as in `tags: a, b`.
type StringList []string

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*l = nil
			return nil
		}
		var out []string
		for _, part := range strings.Split(node.Value, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		*l = out
		return nil
	case yaml.SequenceNode:
		var raw []string
		if err := node.Decode(&raw); err != nil {
			return err
		}
		out := raw[:0]
		for _, p := range raw {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
