package ivfpq

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/catalyst-labs/filingrag/internal/core/domain"
	"github.com/catalyst-labs/filingrag/internal/logger"
)

// Artifact file names inside the index directory.
const (
	annFile      = "filings.ann"
	metadataFile = "metadata.jsonl"
	idMapFile    = "idmap.json"
)

const (
	annMagic   = 0x46524147 // "FRAG"
	annVersion = 1
)

// metaHeader is the first line of metadata.jsonl.
type metaHeader struct {
	ArtifactID string `json:"artifact_id"`
}

// metaLine is one chunk entry in metadata.jsonl.
type metaLine struct {
	ID int64 `json:"id"`
	domain.ChunkMeta
}

// idMapDoc is the idmap.json document.
type idMapDoc struct {
	ArtifactID string          `json:"artifact_id"`
	NextID     int64           `json:"next_id"`
	Count      int             `json:"count"`
	IDToPos    map[int64]int32 `json:"id_to_pos"`
}

// Save writes the three artifacts atomically (write to temp, then
// rename), all stamped with a fresh artifact id so a mixed generation
// on disk is detectable at load.
//
// While untrained there is nothing coherent to write: Save warns and
// returns nil, leaving any previous generation on disk untouched.
func (idx *Index) Save() error {
	if !idx.trained {
		logger.Warn("index untrained (%d vectors pending, minimum %d), skipping save",
			len(idx.pendingVecs), idx.trainMinimum())
		return nil
	}

	if err := os.MkdirAll(idx.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	idx.artifactID = uuid.New()

	if err := idx.saveANN(); err != nil {
		return fmt.Errorf("saving ANN structure: %w", err)
	}
	if err := idx.saveMetadata(); err != nil {
		return fmt.Errorf("saving metadata: %w", err)
	}
	if err := idx.saveIDMap(); err != nil {
		return fmt.Errorf("saving id map: %w", err)
	}

	logger.Info("saved index: %d vectors, %d chunks, artifact %s",
		len(idx.posToID), len(idx.metadata), idx.artifactID)
	return nil
}

// atomicWrite writes via a temp file in the same directory and renames
// it over the target.
func atomicWrite(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (idx *Index) saveANN() error {
	return atomicWrite(filepath.Join(idx.cfg.Dir, annFile), func(w io.Writer) error {
		le := binary.LittleEndian

		for _, v := range []uint32{annMagic, annVersion} {
			if err := binary.Write(w, le, v); err != nil {
				return err
			}
		}
		if _, err := w.Write(idx.artifactID[:]); err != nil {
			return err
		}

		usePQ := uint8(0)
		if idx.cfg.UsePQ {
			usePQ = 1
		}
		hdr := []interface{}{
			uint32(idx.cfg.Dim), uint32(idx.cfg.NList), usePQ,
			uint32(idx.cfg.M), uint32(8), uint64(len(idx.posToID)),
		}
		for _, v := range hdr {
			if err := binary.Write(w, le, v); err != nil {
				return err
			}
		}

		for _, c := range idx.centroids {
			if err := binary.Write(w, le, c); err != nil {
				return err
			}
		}
		if idx.cfg.UsePQ {
			for _, book := range idx.pq.codebooks {
				if err := binary.Write(w, le, book); err != nil {
					return err
				}
			}
		}

		for pos := range idx.posToID {
			if err := binary.Write(w, le, idx.cells[pos]); err != nil {
				return err
			}
			if idx.cfg.UsePQ {
				if _, err := w.Write(idx.codes[pos]); err != nil {
					return err
				}
			} else {
				if err := binary.Write(w, le, idx.vecs[pos]); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (idx *Index) saveMetadata() error {
	return atomicWrite(filepath.Join(idx.cfg.Dir, metadataFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		if err := enc.Encode(metaHeader{ArtifactID: idx.artifactID.String()}); err != nil {
			return err
		}
		for id, meta := range idx.metadata {
			if err := enc.Encode(metaLine{ID: id, ChunkMeta: meta}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (idx *Index) saveIDMap() error {
	return atomicWrite(filepath.Join(idx.cfg.Dir, idMapFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		return enc.Encode(idMapDoc{
			ArtifactID: idx.artifactID.String(),
			NextID:     idx.nextID,
			Count:      len(idx.posToID),
			IDToPos:    idx.idToPos,
		})
	})
}

// load restores the index from disk. Returns (false, nil) when no
// artifacts exist. A dimension mismatch against the configuration fails
// hard; any other corruption or cross-file inconsistency is logged and
// the index starts fresh instead.
func (idx *Index) load() (bool, error) {
	annPath := filepath.Join(idx.cfg.Dir, annFile)
	if _, err := os.Stat(annPath); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	err := idx.loadArtifacts()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrDimensionMismatch) {
		return false, err
	}

	logger.Error("index artifacts unusable, starting fresh (reindex required): %v", err)
	idx.reset()
	return false, nil
}

func (idx *Index) reset() {
	idx.trained = false
	idx.centroids = nil
	if idx.cfg.UsePQ {
		idx.pq = newProductQuantizer(idx.cfg.Dim, idx.cfg.M)
	}
	idx.vecs = nil
	idx.codes = nil
	idx.cells = nil
	idx.lists = make([][]int32, idx.cfg.NList)
	idx.posToID = nil
	idx.idToPos = make(map[int64]int32)
	idx.metadata = make(map[int64]domain.ChunkMeta)
	idx.nextID = 0
	idx.pendingVecs = nil
	idx.pendingMetas = nil
	idx.artifactID = uuid.New()
}

func (idx *Index) loadArtifacts() error {
	annID, err := idx.loadANN()
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrIndexCorrupt, err)
	}

	idMap, err := loadIDMap(filepath.Join(idx.cfg.Dir, idMapFile))
	if err != nil {
		return fmt.Errorf("%w: id map: %v", domain.ErrIndexCorrupt, err)
	}
	if idMap.ArtifactID != annID.String() {
		return fmt.Errorf("%w: id map artifact %s does not match ANN artifact %s",
			domain.ErrIndexCorrupt, idMap.ArtifactID, annID)
	}
	if idMap.Count != len(idx.posToID) {
		return fmt.Errorf("%w: id map count %d does not match ANN count %d",
			domain.ErrIndexCorrupt, idMap.Count, len(idx.posToID))
	}

	metaID, metadata, err := loadMetadata(filepath.Join(idx.cfg.Dir, metadataFile))
	if err != nil {
		return fmt.Errorf("%w: metadata: %v", domain.ErrIndexCorrupt, err)
	}
	if metaID != annID.String() {
		return fmt.Errorf("%w: metadata artifact %s does not match ANN artifact %s",
			domain.ErrIndexCorrupt, metaID, annID)
	}

	// Rebuild the reverse map from the id map, validating positions.
	for pos := range idx.posToID {
		idx.posToID[pos] = -1
	}
	for id, pos := range idMap.IDToPos {
		if int(pos) < 0 || int(pos) >= len(idx.posToID) {
			return fmt.Errorf("%w: id %d maps to position %d of %d",
				domain.ErrIndexCorrupt, id, pos, len(idx.posToID))
		}
		idx.posToID[pos] = id
	}
	for id := range metadata {
		if _, ok := idMap.IDToPos[id]; !ok {
			return fmt.Errorf("%w: metadata id %d missing from id map",
				domain.ErrIndexCorrupt, id)
		}
	}

	idx.idToPos = idMap.IDToPos
	idx.metadata = metadata
	idx.nextID = idMap.NextID
	idx.artifactID = annID
	idx.trained = true
	return nil
}

// loadANN reads the binary structure, adopting the file's geometry,
// and returns its artifact id. A dimension conflict with the configured
// embedding width is surfaced as ErrDimensionMismatch since it means
// the configuration, not the file, is wrong.
func (idx *Index) loadANN() (uuid.UUID, error) {
	f, err := os.Open(filepath.Join(idx.cfg.Dir, annFile))
	if err != nil {
		return uuid.Nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	le := binary.LittleEndian

	var magic, version uint32
	if err := binary.Read(r, le, &magic); err != nil {
		return uuid.Nil, err
	}
	if magic != annMagic {
		return uuid.Nil, fmt.Errorf("bad magic 0x%x", magic)
	}
	if err := binary.Read(r, le, &version); err != nil {
		return uuid.Nil, err
	}
	if version != annVersion {
		return uuid.Nil, fmt.Errorf("unsupported version %d", version)
	}

	var artifactID uuid.UUID
	if _, err := io.ReadFull(r, artifactID[:]); err != nil {
		return uuid.Nil, err
	}

	var dim, nlist, m, bits uint32
	var usePQ uint8
	var count uint64
	for _, dst := range []interface{}{&dim, &nlist, &usePQ, &m, &bits, &count} {
		if err := binary.Read(r, le, dst); err != nil {
			return uuid.Nil, err
		}
	}

	if int(dim) != idx.cfg.Dim {
		return uuid.Nil, fmt.Errorf("%w: persisted index has dimension %d, configuration expects %d",
			domain.ErrDimensionMismatch, dim, idx.cfg.Dim)
	}
	if bits != 8 {
		return uuid.Nil, fmt.Errorf("unsupported code width %d bits", bits)
	}

	// Adopt the file's geometry over configured defaults.
	idx.cfg.NList = int(nlist)
	idx.cfg.UsePQ = usePQ == 1
	idx.cfg.M = int(m)
	if idx.cfg.UsePQ {
		if idx.cfg.Dim%idx.cfg.M != 0 {
			return uuid.Nil, fmt.Errorf("subquantizers %d do not divide dimension %d", m, dim)
		}
		idx.pq = newProductQuantizer(idx.cfg.Dim, idx.cfg.M)
	} else {
		idx.pq = nil
	}

	idx.centroids = make([][]float32, nlist)
	for i := range idx.centroids {
		c := make([]float32, dim)
		if err := binary.Read(r, le, c); err != nil {
			return uuid.Nil, fmt.Errorf("reading centroid %d: %w", i, err)
		}
		idx.centroids[i] = c
	}
	if idx.cfg.UsePQ {
		idx.pq.codebooks = make([][]float32, m)
		for s := range idx.pq.codebooks {
			book := make([]float32, pqKsub*idx.pq.dsub)
			if err := binary.Read(r, le, book); err != nil {
				return uuid.Nil, fmt.Errorf("reading codebook %d: %w", s, err)
			}
			idx.pq.codebooks[s] = book
		}
	}

	idx.cells = make([]int32, count)
	idx.lists = make([][]int32, nlist)
	idx.posToID = make([]int64, count)
	if idx.cfg.UsePQ {
		idx.codes = make([][]byte, count)
	} else {
		idx.vecs = make([][]float32, count)
	}

	for pos := uint64(0); pos < count; pos++ {
		var cell int32
		if err := binary.Read(r, le, &cell); err != nil {
			return uuid.Nil, fmt.Errorf("reading entry %d: %w", pos, err)
		}
		if int(cell) < 0 || int(cell) >= int(nlist) {
			return uuid.Nil, fmt.Errorf("entry %d assigned to cell %d of %d", pos, cell, nlist)
		}
		idx.cells[pos] = cell
		idx.lists[cell] = append(idx.lists[cell], int32(pos))

		if idx.cfg.UsePQ {
			code := make([]byte, m)
			if _, err := io.ReadFull(r, code); err != nil {
				return uuid.Nil, fmt.Errorf("reading code %d: %w", pos, err)
			}
			idx.codes[pos] = code
		} else {
			v := make([]float32, dim)
			if err := binary.Read(r, le, v); err != nil {
				return uuid.Nil, fmt.Errorf("reading vector %d: %w", pos, err)
			}
			idx.vecs[pos] = v
		}
	}

	return artifactID, nil
}

func loadIDMap(path string) (*idMapDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc idMapDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.IDToPos == nil {
		doc.IDToPos = make(map[int64]int32)
	}
	return &doc, nil
}

func loadMetadata(path string) (string, map[int64]domain.ChunkMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !sc.Scan() {
		return "", nil, fmt.Errorf("empty metadata file")
	}
	var hdr metaHeader
	if err := json.Unmarshal(sc.Bytes(), &hdr); err != nil {
		return "", nil, fmt.Errorf("header: %w", err)
	}

	metadata := make(map[int64]domain.ChunkMeta)
	line := 1
	for sc.Scan() {
		line++
		var ml metaLine
		if err := json.Unmarshal(sc.Bytes(), &ml); err != nil {
			return "", nil, fmt.Errorf("line %d: %w", line, err)
		}
		metadata[ml.ID] = ml.ChunkMeta
	}
	if err := sc.Err(); err != nil {
		return "", nil, err
	}
	return hdr.ArtifactID, metadata, nil
}
