package parser

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// readDOCX returns the body paragraphs of a .docx file. Paragraphs inside
// tables and text boxes are skipped, so the output matches the document's
// top-level paragraph list.
func readDOCX(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		return parseDocumentXML(rc)
	}
	return nil, errors.New("word/document.xml not found")
}

func parseDocumentXML(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paras   []string
		cur     strings.Builder
		pDepth  int // nesting of w:p
		skip    int // nesting of w:tbl / w:txbxContent
		inText  bool
		sawBody bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordprocessingNS {
				continue
			}
			switch t.Name.Local {
			case "body":
				sawBody = true
			case "tbl", "txbxContent":
				skip++
			case "p":
				if skip == 0 {
					if pDepth == 0 {
						cur.Reset()
					}
					pDepth++
				}
			case "t":
				inText = skip == 0 && pDepth > 0
			case "tab":
				if skip == 0 && pDepth > 0 {
					cur.WriteByte('\t')
				}
			case "br", "cr":
				if skip == 0 && pDepth > 0 {
					cur.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if t.Name.Space != wordprocessingNS {
				continue
			}
			switch t.Name.Local {
			case "tbl", "txbxContent":
				if skip > 0 {
					skip--
				}
			case "p":
				if skip == 0 && pDepth > 0 {
					pDepth--
					if pDepth == 0 {
						paras = append(paras, cur.String())
					}
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}

	if !sawBody {
		return nil, errors.New("document.xml has no body")
	}
	return paras, nil
}
