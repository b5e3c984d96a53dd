package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrUnsupportedFile is returned for file types with no loader.
var ErrUnsupportedFile = errors.New("unsupported file type")

// Document is a loaded source text before chunking.
type Document struct {
	Text     string            `json:"content"`
	Source   string            `json:"source,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// jsonItem is one entry of a JSON knowledge file.
type jsonItem struct {
	Content   string `json:"content"`
	Condition string `json:"condition"`
	Category  string `json:"category"`
}

// LoadFile reads documents from a .json, .csv or .txt file.
func LoadFile(path string) ([]Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadJSON(path)
	case ".csv":
		return loadCSV(path)
	case ".txt", ".md":
		return loadText(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(path))
	}
}

// loadJSON reads an array of {content, condition, category} items. Items
// without content are skipped.
func loadJSON(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var items []jsonItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	docs := make([]Document, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Content) == "" {
			continue
		}
		docs = append(docs, Document{
			Text:   item.Content,
			Source: path,
			Metadata: map[string]string{
				"condition": orDefault(item.Condition, "unknown"),
				"category":  orDefault(item.Category, "general"),
			},
		})
	}
	return docs, nil
}

// loadCSV turns each data row into a document of its non-empty cells joined
// by spaces. The first row is a header.
func loadCSV(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}

	var docs []Document
	for row := 0; ; row++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		cells := make([]string, 0, len(record))
		for _, c := range record {
			if c = strings.TrimSpace(c); c != "" {
				cells = append(cells, c)
			}
		}
		if len(cells) == 0 {
			continue
		}
		docs = append(docs, Document{
			Text:     strings.Join(cells, " "),
			Source:   path,
			Metadata: map[string]string{"row_index": strconv.Itoa(row)},
		})
	}
	return docs, nil
}

func loadText(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []Document{{Text: string(data), Source: path}}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
