// Package xlsx reads and writes the OOXML spreadsheet container format:
// a ZIP archive of interrelated XML parts. It resolves the manifest,
// relationship and shared-string chain into sheet descriptors, decodes
// worksheets through a streaming event parser into cached row/cell grids,
// and emits well-formed worksheet XML incrementally on write.
package xlsx

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"
)

const (
	contentTypesPart    = "[Content_Types].xml"
	defaultWorkbookPart = "xl/workbook.xml"

	workbookContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"
	worksheetRelType     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet"
	sharedStringsRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings"
)

// Relationship is one entry of a relationships part.
type Relationship struct {
	ID     string
	Type   string
	Target string
}

// SheetDescriptor identifies one worksheet of the workbook. Descriptors
// are built once during resolution and immutable thereafter.
type SheetDescriptor struct {
	// Name is the sheet name shown to users.
	Name string

	// RelID is the relationship id joining the manifest to the part.
	RelID string

	// Path is the resolved worksheet part path inside the container.
	Path string

	// SheetID is the numeric sheet id from the manifest.
	SheetID int
}

// OpenOptions contains options for opening a workbook.
type OpenOptions struct {
	// CacheSize caps how many materialized sheets are kept. Zero means
	// DefaultCacheSize.
	CacheSize int

	// BatchSize is passed to the worksheet parser; see ParseOptions.
	BatchSize int

	// Logger receives diagnostics. Nil means zerolog.Nop(); logs
	// supplement errors, they never replace them.
	Logger *zerolog.Logger
}

// resolution is the product of the bootstrap walk: the sheet list and the
// shared string table. A workbook is either unresolved (res == nil) or
// holds a fully-built resolution; no partially-initialized state is ever
// observable.
type resolution struct {
	workbookPart string
	sheets       []SheetDescriptor
	sst          *SharedStringTable
}

// Workbook is an opened xlsx container with its resolved sheet list.
//
// You should not instantiate this type yourself; use OpenWorkbook or
// OpenWorkbookBytes.
type Workbook struct {
	container *Container
	opts      OpenOptions
	log       zerolog.Logger

	res   *resolution
	cache *sheetCache

	parseCount int
}

// OpenWorkbook opens an xlsx file for data extraction. The bootstrap
// parts are resolved eagerly: a missing or malformed workbook manifest
// fails the open, while worksheet parts are only touched on access.
func OpenWorkbook(filename string, options *OpenOptions) (*Workbook, error) {
	format, err := DetectFormat(filename, nil)
	if err != nil {
		return nil, err
	}
	if format != "" && format != "xlsx" {
		return nil, NewOpenError(filename, nil, "%s; not supported", FileFormatDescriptions[format])
	}
	c, err := OpenContainer(filename)
	if err != nil {
		return nil, err
	}
	return newWorkbook(c, options)
}

// OpenWorkbookBytes opens an xlsx container held in memory.
func OpenWorkbookBytes(data []byte, options *OpenOptions) (*Workbook, error) {
	format, err := DetectFormat("", data)
	if err != nil {
		return nil, err
	}
	if format != "" && format != "xlsx" {
		return nil, NewOpenError("", nil, "%s; not supported", FileFormatDescriptions[format])
	}
	c, err := OpenContainerBytes(data)
	if err != nil {
		return nil, err
	}
	return newWorkbook(c, options)
}

func newWorkbook(c *Container, options *OpenOptions) (*Workbook, error) {
	var opts OpenOptions
	if options != nil {
		opts = *options
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	w := &Workbook{
		container: c,
		opts:      opts,
		log:       log,
		cache:     newSheetCache(opts.CacheSize, log),
	}
	if err := w.resolve(); err != nil {
		c.Close()
		return nil, err
	}
	return w, nil
}

// Close releases the container handle. Sheets already materialized stay
// readable; further materialization fails.
func (w *Workbook) Close() error {
	return w.container.Close()
}

// Container exposes the underlying container for entry-level access.
func (w *Workbook) Container() *Container {
	return w.container
}

// resolve walks manifest -> relationships -> shared strings into a
// resolution. It executes at most once per workbook; repeated calls are
// free.
func (w *Workbook) resolve() error {
	if w.res != nil {
		return nil
	}

	workbookPart, err := w.findWorkbookPart()
	if err != nil {
		return err
	}
	baseDir := path.Dir(workbookPart)

	rels, sstTarget, err := w.readRelationships(workbookPart, baseDir)
	if err != nil {
		return err
	}

	sheets, err := w.readSheetList(workbookPart, baseDir, rels)
	if err != nil {
		return err
	}

	sstPath := baseDir + "/sharedStrings.xml"
	if sstTarget != "" {
		sstPath = sstTarget
	}
	sstData, err := w.container.ReadEntryBytes(sstPath)
	if err != nil {
		return err
	}
	sst, err := parseSharedStrings(sstPath, sstData, w.parseOptions())
	if err != nil {
		return err
	}

	w.res = &resolution{workbookPart: workbookPart, sheets: sheets, sst: sst}
	w.log.Debug().
		Str("workbook", workbookPart).
		Int("sheets", len(sheets)).
		Int("sharedStrings", sst.Len()).
		Msg("workbook resolved")
	return nil
}

// findWorkbookPart scans the content-types declaration for the part
// marked as the primary workbook XML, defaulting to the conventional path
// when the declaration is absent.
func (w *Workbook) findWorkbookPart() (string, error) {
	data, err := w.container.ReadEntryBytes(contentTypesPart)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return defaultWorkbookPart, nil
	}
	part := ""
	p := NewParser(contentTypesPart, w.parseOptions())
	p.OnOverride(func(partName, contentType string) error {
		if contentType == workbookContentType && part == "" {
			part = strings.TrimPrefix(partName, "/")
		}
		return nil
	})
	if err := p.Parse(bytes.NewReader(data)); err != nil {
		return "", err
	}
	if part == "" {
		part = defaultWorkbookPart
	}
	return part, nil
}

// readRelationships parses the workbook's rels part into an id->path
// table of the worksheet-typed relationships, plus the shared-strings
// target if one is declared. A missing rels part is tolerated as an empty
// table.
func (w *Workbook) readRelationships(workbookPart, baseDir string) (map[string]string, string, error) {
	relsPart := baseDir + "/_rels/" + path.Base(workbookPart) + ".rels"
	data, err := w.container.ReadEntryBytes(relsPart)
	if err != nil {
		return nil, "", err
	}
	rels := make(map[string]string)
	sstTarget := ""
	if len(data) == 0 {
		return rels, "", nil
	}
	p := NewParser(relsPart, w.parseOptions())
	p.OnRelationship(func(rel Relationship) error {
		switch rel.Type {
		case worksheetRelType:
			rels[rel.ID] = normalizeTarget(rel.Target, baseDir)
		case sharedStringsRelType:
			sstTarget = normalizeTarget(rel.Target, baseDir)
		}
		return nil
	})
	if err := p.Parse(bytes.NewReader(data)); err != nil {
		return nil, "", err
	}
	return rels, sstTarget, nil
}

// normalizeTarget turns a relationship target into a container entry
// path: absolute targets lose their leading separator, relative ones are
// joined to the workbook's base directory.
func normalizeTarget(target, baseDir string) string {
	if strings.HasPrefix(target, "/") {
		return path.Clean(strings.TrimPrefix(target, "/"))
	}
	return path.Clean(baseDir + "/" + target)
}

// readSheetList parses the manifest's sheet list and joins each sheet's
// relationship id against the rels table, falling back to the
// conventional per-sheet-id path when no relationship matches. A missing
// or malformed manifest fails the whole open.
func (w *Workbook) readSheetList(workbookPart, baseDir string, rels map[string]string) ([]SheetDescriptor, error) {
	data, err := w.container.ReadEntryBytes(workbookPart)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, NewParseError(workbookPart, 0, "workbook manifest missing")
	}
	var sheets []SheetDescriptor
	p := NewParser(workbookPart, w.parseOptions())
	p.OnSheet(func(name, relID string, sheetID int) error {
		target, ok := rels[relID]
		if !ok || relID == "" {
			target = fmt.Sprintf("%s/worksheets/sheet%d.xml", baseDir, sheetID)
		}
		sheets = append(sheets, SheetDescriptor{
			Name:    name,
			RelID:   relID,
			Path:    target,
			SheetID: sheetID,
		})
		return nil
	})
	if err := p.Parse(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return sheets, nil
}

func (w *Workbook) parseOptions() ParseOptions {
	return ParseOptions{BatchSize: w.opts.BatchSize}
}

// NSheets returns the number of worksheets in the workbook.
func (w *Workbook) NSheets() int {
	return len(w.res.sheets)
}

// SheetNames returns all sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.res.sheets))
	for i, d := range w.res.sheets {
		names[i] = d.Name
	}
	return names
}

// SheetDescriptors returns the resolved sheet descriptors.
func (w *Workbook) SheetDescriptors() []SheetDescriptor {
	return w.res.sheets
}

// SharedStrings returns the read-side shared string table.
func (w *Workbook) SharedStrings() *SharedStringTable {
	return w.res.sst
}

// SheetByIndex materializes a sheet by its position in the workbook.
func (w *Workbook) SheetByIndex(sheetx int) (*Sheet, error) {
	if sheetx < 0 || sheetx >= len(w.res.sheets) {
		return nil, NewParseError("", 0, "sheet index %d out of range", sheetx)
	}
	return w.sheetByDescriptor(w.res.sheets[sheetx])
}

// SheetByName materializes a sheet by its name.
func (w *Workbook) SheetByName(sheetName string) (*Sheet, error) {
	for _, d := range w.res.sheets {
		if d.Name == sheetName {
			return w.sheetByDescriptor(d)
		}
	}
	return nil, NewParseError("", 0, "no sheet named %q", sheetName)
}

// InvalidateSheet drops one sheet from the cache, for callers that know
// the underlying data changed.
func (w *Workbook) InvalidateSheet(sheetName string) {
	w.cache.remove(sheetName)
}

// CacheLen returns the number of sheets currently cached.
func (w *Workbook) CacheLen() int {
	return w.cache.len()
}

// ParseCount returns how many worksheet parses this workbook has run. A
// cache hit does not increment it.
func (w *Workbook) ParseCount() int {
	return w.parseCount
}
