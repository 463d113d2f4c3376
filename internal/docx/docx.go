// Package docx encodes formatted petition text as a Word (.docx) document.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrEncoding marks any failure to serialize the document. No partial output is returned.
var ErrEncoding = errors.New("falha ao gerar documento Word")

const (
	ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	Extension   = ".docx"
)

type LineKind int

const (
	Blank LineKind = iota
	Heading
	Body
)

func (k LineKind) String() string {
	switch k {
	case Blank:
		return "blank"
	case Heading:
		return "heading"
	default:
		return "body"
	}
}

var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d+\.\s`),
	regexp.MustCompile(`^[A-Z]\.\s`),
	regexp.MustCompile(`^[\p{Lu}\s]+$`),
	regexp.MustCompile(`(?i)^(PETIÇÃO|REQUERIMENTO|CONSIDERANDO|PELOS FUNDAMENTOS|REQUER|NESTES TERMOS)`),
}

// Classify decides how a single line is rendered. Lines are trimmed first.
func Classify(line string) LineKind {
	line = strings.TrimSpace(line)
	if line == "" {
		return Blank
	}
	for _, re := range headingPatterns {
		if re.MatchString(line) {
			return Heading
		}
	}
	return Body
}

// Filename appends the .docx extension when base lacks it.
func Filename(base string) string {
	if strings.HasSuffix(base, Extension) {
		return base
	}
	return base + Extension
}

// Encode renders text one paragraph per line, preceded by title when it is not empty.
func Encode(text, title string) ([]byte, error) {
	var body bytes.Buffer
	if title != "" {
		body.WriteString(`<w:p><w:pPr><w:pStyle w:val="Title"/><w:spacing w:after="400"/></w:pPr>`)
		if err := writeRun(&body, title, ""); err != nil {
			return nil, err
		}
		body.WriteString(`</w:p>`)
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		var err error
		switch Classify(line) {
		case Blank:
			body.WriteString(`<w:p><w:pPr><w:spacing w:after="200"/></w:pPr></w:p>`)
		case Heading:
			body.WriteString(`<w:p><w:pPr><w:spacing w:before="300" w:after="200"/></w:pPr>`)
			err = writeRun(&body, line, `<w:b/><w:bCs/><w:sz w:val="24"/><w:szCs w:val="24"/>`)
			body.WriteString(`</w:p>`)
		case Body:
			body.WriteString(`<w:p><w:pPr><w:spacing w:after="120"/><w:jc w:val="both"/></w:pPr>`)
			err = writeRun(&body, line, `<w:sz w:val="22"/><w:szCs w:val="22"/>`)
			body.WriteString(`</w:p>`)
		}
		if err != nil {
			return nil, err
		}
	}

	document := xml.Header + `<w:document xmlns:w="` + nsMain + `" xmlns:r="` + nsRel + `"><w:body>` +
		body.String() + sectionProperties + `</w:body></w:document>`

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	parts := []struct{ name, data string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"word/document.xml", document},
		{"word/styles.xml", stylesXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "create %s", p.name), ErrEncoding)
		}
		if _, err := io.WriteString(w, p.data); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "write %s", p.name), ErrEncoding)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "close package"), ErrEncoding)
	}
	return out.Bytes(), nil
}

func writeRun(buf *bytes.Buffer, text, props string) error {
	buf.WriteString(`<w:r>`)
	if props != "" {
		buf.WriteString(`<w:rPr>` + props + `</w:rPr>`)
	}
	buf.WriteString(`<w:t xml:space="preserve">`)
	if err := xml.EscapeText(buf, []byte(text)); err != nil {
		return errors.Mark(errors.Wrap(err, "escape text"), ErrEncoding)
	}
	buf.WriteString(`</w:t></w:r>`)
	return nil
}
