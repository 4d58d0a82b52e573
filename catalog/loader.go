package catalog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"shale/heap"
	"shale/storage"
	"shale/tuple"
	"shale/types"
)

// LoadSchema reads the textual catalog description, one table per line:
//
//	tableName (colName type [pk], ...)
//
// with type one of int, string. Heap files are created (or reopened) under
// dataDir as <tableName>.dat and registered. Returns the names loaded, in
// file order.
func (c *Catalog) LoadSchema(path string, dataDir string, pool storage.PageSource) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema %s: %w", path, err)
	}
	defer f.Close()

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}

	var loaded []string
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, desc, pkey, err := parseTableLine(line)
		if err != nil {
			return loaded, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}

		hf, err := heap.NewHeapFile(filepath.Join(dataDir, name+".dat"), desc, pool)
		if err != nil {
			return loaded, err
		}
		c.AddTable(hf, name, pkey)
		loaded = append(loaded, name)

		log.WithField("table", name).WithField("schema", desc.String()).Info("table loaded")
	}
	return loaded, scanner.Err()
}

func parseTableLine(line string) (name string, desc *tuple.TupleDesc, pkey string, err error) {
	open := strings.Index(line, "(")
	end := strings.LastIndex(line, ")")
	if open < 0 || end < open {
		return "", nil, "", fmt.Errorf("malformed table line: %q", line)
	}

	name = strings.TrimSpace(line[:open])
	if name == "" {
		return "", nil, "", fmt.Errorf("missing table name: %q", line)
	}

	var fieldTypes []types.Type
	var fieldNames []string
	for _, col := range strings.Split(line[open+1:end], ",") {
		tokens := strings.Fields(col)
		if len(tokens) < 2 || len(tokens) > 3 {
			return "", nil, "", fmt.Errorf("malformed column %q", strings.TrimSpace(col))
		}

		t, terr := types.ParseType(strings.ToLower(tokens[1]))
		if terr != nil {
			return "", nil, "", terr
		}
		fieldNames = append(fieldNames, tokens[0])
		fieldTypes = append(fieldTypes, t)

		if len(tokens) == 3 {
			if strings.ToLower(tokens[2]) != "pk" {
				return "", nil, "", fmt.Errorf("unknown column constraint %q", tokens[2])
			}
			pkey = tokens[0]
		}
	}

	desc, err = tuple.NewTupleDesc(fieldTypes, fieldNames)
	if err != nil {
		return "", nil, "", err
	}
	return name, desc, pkey, nil
}
