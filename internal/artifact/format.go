package artifact

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// Binary layouts, all little-endian:
//
//	embeddings: uint32 dim, uint32 n, then n x (int64 book id, dim x float32)
//	factors:    uint32 k,   uint32 n, then n x (k x float32)
//
// JSON artifacts: metadata is an array of BookMeta, popularity an array of
// PopularityEntry, and the id maps are {"<external id>": row} objects.

// ReadEmbeddings reads an embedding matrix file and computes per-row L2 norms.
func ReadEmbeddings(path string) (*Embeddings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dim: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read row count: %w", err)
	}
	if dim == 0 {
		return nil, fmt.Errorf("dimensionality is zero")
	}
	emb := &Embeddings{
		Dim:     int(dim),
		IDs:     make([]int64, 0, n),
		Vectors: make([][]float32, 0, n),
		Norms:   make([]float64, 0, n),
	}
	for i := uint32(0); i < n; i++ {
		var id int64
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, fmt.Errorf("read id of row %d: %w", i, err)
		}
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, &vec); err != nil {
			return nil, fmt.Errorf("read vector of row %d: %w", i, err)
		}
		var sum float64
		for _, v := range vec {
			sum += float64(v) * float64(v)
		}
		emb.IDs = append(emb.IDs, id)
		emb.Vectors = append(emb.Vectors, vec)
		emb.Norms = append(emb.Norms, math.Sqrt(sum))
	}
	return emb, nil
}

// WriteEmbeddings writes an embedding matrix file. Used by offline tools and tests.
func WriteEmbeddings(path string, dim int, ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, uint32(dim)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(ids))); err != nil {
		return err
	}
	for i, id := range ids {
		if len(vectors[i]) != dim {
			return fmt.Errorf("row %d has %d columns, want %d", i, len(vectors[i]), dim)
		}
		if err := binary.Write(w, binary.LittleEndian, id); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, vectors[i]); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadFactors reads a latent factor matrix file.
func ReadFactors(path string) (*Factors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var k, n uint32
	if err := binary.Read(r, binary.LittleEndian, &k); err != nil {
		return nil, fmt.Errorf("read k: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read row count: %w", err)
	}
	if k == 0 {
		return nil, fmt.Errorf("factor dimensionality is zero")
	}
	fac := &Factors{K: int(k), Rows: make([][]float32, 0, n)}
	for i := uint32(0); i < n; i++ {
		row := make([]float32, k)
		if err := binary.Read(r, binary.LittleEndian, &row); err != nil {
			return nil, fmt.Errorf("read row %d: %w", i, err)
		}
		fac.Rows = append(fac.Rows, row)
	}
	return fac, nil
}

// WriteFactors writes a latent factor matrix file.
func WriteFactors(path string, k int, rows [][]float32) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, uint32(k)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(rows))); err != nil {
		return err
	}
	for i, row := range rows {
		if len(row) != k {
			return fmt.Errorf("row %d has %d columns, want %d", i, len(row), k)
		}
		if err := binary.Write(w, binary.LittleEndian, row); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadMeta reads the embedding metadata table.
func ReadMeta(path string) ([]BookMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta []BookMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return meta, nil
}

// WriteMeta writes the embedding metadata table.
func WriteMeta(path string, meta []BookMeta) error {
	return writeJSON(path, meta)
}

// ReadIDMapTable reads an external-id -> row-index table. Keys must be decimal
// integers; bijectivity is the idmap package's concern, key syntax is ours.
func ReadIDMapTable(path string) (map[int64]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse mapping table: %w", err)
	}
	table := make(map[int64]int, len(raw))
	for key, row := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("mapping key %q is not an integer id", key)
		}
		table[id] = row
	}
	return table, nil
}

// WriteIDMapTable writes an external-id -> row-index table.
func WriteIDMapTable(path string, table map[int64]int) error {
	raw := make(map[string]int, len(table))
	for id, row := range table {
		raw[strconv.FormatInt(id, 10)] = row
	}
	return writeJSON(path, raw)
}

// ReadPopularity reads the popularity table.
func ReadPopularity(path string) ([]PopularityEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []PopularityEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse popularity table: %w", err)
	}
	return entries, nil
}

// WritePopularity writes the popularity table.
func WritePopularity(path string, entries []PopularityEntry) error {
	return writeJSON(path, entries)
}

func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create artifact dir: %w", err)
		}
	}
	return os.Create(path)
}

func writeJSON(path string, v interface{}) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
