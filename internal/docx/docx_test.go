package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := map[string]LineKind{
		"":                                 Blank,
		"   ":                              Blank,
		"1. Dos fatos":                     Heading,
		"A. Preliminar":                    Heading,
		"DOS FATOS":                        Heading,
		"DOS VALORES DA CAUSA E ISENÇÃO":   Heading,
		"Nestes termos, pede deferimento.": Heading,
		"requer a citação do réu":          Heading,
		"O autor é consumidor.":            Body,
		"a) O recebimento da petição;":     Body,
		"Autor: Maria":                     Body,
	}
	for line, want := range cases {
		if got := Classify(line); got != want {
			t.Errorf("Classify(%q) = %s, want %s", line, got, want)
		}
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("peticao_formatada_1"); got != "peticao_formatada_1.docx" {
		t.Fatalf("got %s", got)
	}
	if got := Filename("x.docx"); got != "x.docx" {
		t.Fatalf("got %s", got)
	}
}

func readPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			t.Fatal(err)
		}
		return string(b)
	}
	t.Fatalf("part %s missing", name)
	return ""
}

func TestEncodeProducesWellFormedPackage(t *testing.T) {
	text := "DOS FATOS\n\nO autor <Maria> & filhos é consumidor.\n1. Primeiro"
	data, err := Encode(text, "Petição Jurídica - doc-1")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, part := range []string{"[Content_Types].xml", "_rels/.rels", "word/styles.xml", "word/_rels/document.xml.rels"} {
		readPart(t, data, part)
	}
	doc := readPart(t, data, "word/document.xml")
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		if _, err := dec.Token(); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("document.xml not well formed: %v", err)
		}
	}
	if strings.Count(doc, "<w:p>") != 5 {
		t.Fatalf("expected title + 4 paragraphs, got %d", strings.Count(doc, "<w:p>"))
	}
	if !strings.Contains(doc, `<w:pStyle w:val="Title"/><w:spacing w:after="400"/>`) {
		t.Fatalf("title paragraph missing")
	}
	if !strings.Contains(doc, `<w:jc w:val="both"/>`) {
		t.Fatalf("body paragraph should be justified")
	}
	if !strings.Contains(doc, "&lt;Maria&gt; &amp; filhos") {
		t.Fatalf("text not escaped")
	}
	if strings.Count(doc, `<w:b/>`) != 2 {
		t.Fatalf("expected two bold headings")
	}
}

func TestEncodeWithoutTitle(t *testing.T) {
	data, err := Encode("linha", "")
	if err != nil {
		t.Fatal(err)
	}
	if doc := readPart(t, data, "word/document.xml"); strings.Contains(doc, "Title") {
		t.Fatalf("unexpected title paragraph")
	}
}

func TestDirSaver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := DirSaver{Dir: dir}.Save(context.Background(), "peticao", []byte("data"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(path) != "peticao.docx" {
		t.Fatalf("path = %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "data" {
		t.Fatalf("read back: %v %q", err, b)
	}
}
