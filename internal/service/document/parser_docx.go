package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

const docxBody = "word/document.xml"

// docxParser reads paragraph and table text out of the OOXML body.
type docxParser struct{}

func (docxParser) Parse(ctx context.Context, reader io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	if len(content) == 0 {
		return nil, errors.New("empty docx content")
	}
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("missing %s", docxBody)
	}
	rc, err := body.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", docxBody, err)
	}
	defer rc.Close()

	text, err := docxText(xml.NewDecoder(rc))
	if err != nil {
		return nil, err
	}
	return []*schema.Document{{Content: text, MetaData: metaFrom(opts)}}, nil
}

// docxText streams the body tokens. Paragraphs become lines and table cells in
// one row are joined with tabs.
func docxText(dec *xml.Decoder) (string, error) {
	var (
		out       strings.Builder
		paragraph strings.Builder
		cells     []string
		inText    bool
		tableDeep int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				paragraph.WriteByte('\t')
			case "br", "cr":
				paragraph.WriteByte('\n')
			case "tbl":
				tableDeep++
			case "tr":
				cells = cells[:0]
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				line := strings.TrimSpace(paragraph.String())
				paragraph.Reset()
				if line == "" {
					continue
				}
				if tableDeep > 0 {
					cells = append(cells, line)
					continue
				}
				out.WriteString(line)
				out.WriteByte('\n')
			case "tr":
				if len(cells) > 0 {
					out.WriteString(strings.Join(cells, "\t"))
					out.WriteByte('\n')
				}
			case "tbl":
				tableDeep--
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		}
	}
	return strings.TrimSpace(out.String()), nil
}
