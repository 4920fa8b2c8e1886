package core

// validation.go checks that uploaded markup is well-formed. Only
// well-formedness matters here: one root element, balanced tags, nothing
// but whitespace, comments or processing instructions after the root.
// Schema-level checks belong to format-specific validators.

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxDocumentBytes bounds how much of a document is read for validation.
const DefaultMaxDocumentBytes = 10 << 20

// ErrDocumentTooLarge is returned when a document exceeds the validation limit.
var ErrDocumentTooLarge = errors.New("file too large")

// CheckWellFormed reads r and returns an error describing the first
// well-formedness violation, or nil.
func CheckWellFormed(r io.Reader, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDocumentBytes
	}

	lr := &io.LimitedReader{R: r, N: maxBytes + 1}
	dec := xml.NewDecoder(lr)
	dec.Strict = true

	depth := 0
	roots := 0
	for {
		tok, err := dec.Token()
		if lr.N <= 0 {
			return fmt.Errorf("%w: document exceeds %d bytes", ErrDocumentTooLarge, maxBytes)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					line, _ := dec.InputPos()
					return fmt.Errorf("extra content at the end of the document, line %d", line)
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				line, _ := dec.InputPos()
				if roots == 0 {
					return fmt.Errorf("start tag expected, line %d", line)
				}
				return fmt.Errorf("extra content at the end of the document, line %d", line)
			}
		}
	}

	if roots == 0 {
		return errors.New("document is empty")
	}
	return nil
}
