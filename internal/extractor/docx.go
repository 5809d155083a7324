package extractor

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// extractDOCX joins the text of every paragraph of word/document.xml, one per line.
func extractDOCX(data []byte) (string, error) {
	ra, size := readerAt(data)
	doc, err := docx.ReadDocxFromMemory(ra, size)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer func() { _ = doc.Close() }()

	return paragraphText(doc.Editable().GetContent())
}

// paragraphText walks WordprocessingML and keeps only run text (w:t), tabs and breaks.
// Deleted revisions (w:delText), field codes (w:instrText) and tab stop
// definitions inside paragraph properties are skipped.
func paragraphText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))

	var (
		sb      strings.Builder
		inText  bool
		inProps int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if inProps > 0 {
				if t.Name.Local == "pPr" {
					inProps++
				}
				continue
			}
			switch t.Name.Local {
			case "pPr":
				inProps++
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "pPr":
				inProps--
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
