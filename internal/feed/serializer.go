package feed

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"

	"portal_sync/internal/domain"
	"portal_sync/internal/export"
)

// Output is a rendered feed body with its content type.
type Output struct {
	Body        []byte
	ContentType string
}

// utf8BOM is prepended to CSV feeds; several portal importers refuse to
// detect UTF-8 without it.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Serialize renders the mapped records in the portal's declared format.
func Serialize(format domain.FeedFormat, records []*export.Record) (*Output, error) {
	switch format {
	case domain.FormatXML:
		return serializeXML(records)
	case domain.FormatJSON:
		return serializeJSON(records)
	case domain.FormatCSV:
		return serializeCSV(records)
	default:
		return nil, fmt.Errorf("unsupported feed format %q", format)
	}
}

type xmlFeed struct {
	XMLName  xml.Name         `xml:"listings"`
	Listings []*export.Record `xml:"listing"`
}

func serializeXML(records []*export.Record) (*Output, error) {
	body, err := xml.MarshalIndent(xmlFeed{Listings: records}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal xml feed: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(body)
	buf.WriteByte('\n')

	return &Output{Body: buf.Bytes(), ContentType: "application/xml; charset=utf-8"}, nil
}

func serializeJSON(records []*export.Record) (*Output, error) {
	if records == nil {
		records = []*export.Record{}
	}
	body, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshal json feed: %w", err)
	}
	return &Output{Body: body, ContentType: "application/json; charset=utf-8"}, nil
}

func serializeCSV(records []*export.Record) (*Output, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(export.CSVHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(rec.CSVRow()); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv feed: %w", err)
	}

	return &Output{Body: buf.Bytes(), ContentType: "text/csv; charset=utf-8"}, nil
}
