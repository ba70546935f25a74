package pkg

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	vec3 "github.com/flywave/go3d/float64/vec3"

	"github.com/oblique-map/osgb_tiler/internal/geometry"
	tilerio "github.com/oblique-map/osgb_tiler/internal/io"
	"github.com/oblique-map/osgb_tiler/internal/metadata"
	"github.com/oblique-map/osgb_tiler/internal/tiler"
	"github.com/oblique-map/osgb_tiler/internal/tileset"
	"github.com/oblique-map/osgb_tiler/tools"
)

// ConvertBatch converts a whole dataset: every root tile in parallel, then
// one dataset-root tileset.json listing the tiles that succeeded.
func (t *Tiler) ConvertBatch(inDir, outDir string, centerX, centerY float64, maxLevel int, opts *tiler.TilerOptions) error {
	err := t.convertBatch(inDir, outDir, centerX, centerY, maxLevel, opts)
	if err != nil {
		t.setLastError(err)
	}
	return err
}

func (t *Tiler) convertBatch(inDir, outDir string, centerX, centerY float64, maxLevel int, opts *tiler.TilerOptions) error {
	defer t.geo.Cleanup()

	dataPath := strings.TrimSuffix(filepath.ToSlash(inDir), "/")
	rootDir := strings.TrimSuffix(dataPath, "/Data")

	md, hasMetadata, err := t.loadMetadata(filepath.Join(rootDir, "metadata.xml"), &centerX, &centerY)
	if err != nil {
		return err
	}

	checkDataDir := dataPath
	if !strings.HasSuffix(dataPath, "/Data") {
		checkDataDir = dataPath + "/Data"
	}
	obliqueData := false
	if info, err := os.Stat(checkDataDir); err == nil && info.IsDir() && hasMetadata {
		obliqueData = true
		tools.LogOutput("oblique dataset mode (Data directory + metadata.xml)")
	} else {
		checkDataDir = dataPath
		tools.LogOutput("plain OSGB folder mode")
	}

	if err := tools.CreateDirectoryIfDoesNotExist(outDir); err != nil {
		return tiler.Wrap(tiler.ErrIo, err, "create output directory")
	}

	units, err := t.collectWorkUnits(obliqueData, checkDataDir, outDir, centerX, centerY, maxLevel, opts)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		return tiler.Errorf(tiler.ErrIo, "no OSGB data found in %s", inDir)
	}
	tools.LogOutput(fmt.Sprintf("found %d tile directories to process", len(units)))

	results := t.runPool(units, opts)
	if len(results) == 0 {
		return tiler.Errorf(tiler.ErrGeometry, "no tile was converted successfully")
	}

	var globalBox geometry.TileBox
	for _, r := range results {
		globalBox.Union(r.BBox)
	}

	heightMin := 0.0
	if !globalBox.IsEmpty() {
		heightMin = globalBox.Min[2]
	}

	var enuOffset *vec3.T
	if hasMetadata && md.Kind == metadata.SrsENU &&
		(md.OffsetX != 0 || md.OffsetY != 0 || md.OffsetZ != 0) {
		enuOffset = &vec3.T{md.OffsetX, md.OffsetY, md.OffsetZ}
	}

	root := tileset.Node{
		Transform:      tileset.RootTransform(centerX, centerY, heightMin, enuOffset),
		BoundingVolume: tileset.BoxFromTileBox(globalBox),
		GeometricError: 2000,
		Refine:         "REPLACE",
	}
	for _, r := range results {
		root.Children = append(root.Children, tileset.Node{
			BoundingVolume: tileset.BoxFromTileBox(r.BBox),
			GeometricError: 1000,
			Content:        &tileset.Content{URI: r.TilesetURI},
		})
	}

	rootJSON, err := tileset.Encode(tileset.Tileset{
		Asset:          tileset.Asset{Version: "1.0", GltfUpAxis: "Z"},
		GeometricError: 2000,
		Root:           root,
	})
	if err != nil {
		return tiler.Wrap(tiler.ErrIo, err, "encode dataset tileset")
	}
	if err := tools.WriteFile(filepath.Join(outDir, "tileset.json"), rootJSON); err != nil {
		return tiler.Wrap(tiler.ErrIo, err, "write dataset tileset.json")
	}

	tools.LogOutput(fmt.Sprintf("batch finished: root tileset.json references %d tiles", len(results)))
	return nil
}

// loadMetadata parses metadata.xml when present and initializes the geo
// transform from it, overriding the dataset center. A missing file keeps the
// caller-provided center and no transform; an unusable CRS aborts the run.
func (t *Tiler) loadMetadata(path string, centerX, centerY *float64) (*metadata.Metadata, bool, error) {
	md, err := metadata.ParseFile(path)
	if err != nil {
		tools.LogOutput(fmt.Sprintf("metadata.xml not usable (%v), using provided center %.6f,%.6f", err, *centerX, *centerY))
		return nil, false, nil
	}

	origin := vec3.T{md.OffsetX, md.OffsetY, md.OffsetZ}
	switch md.Kind {
	case metadata.SrsENU:
		if err := t.geo.InitFromEnu(md.CenterLon, md.CenterLat, &origin); err != nil {
			return md, true, tiler.Wrap(tiler.ErrCrs, err, "geo transform init for ENU failed")
		}
		*centerX = md.CenterLon
		*centerY = md.CenterLat
	case metadata.SrsEPSG:
		if err := t.geo.InitFromEpsg(md.EpsgCode, &origin); err != nil {
			return md, true, tiler.Wrap(tiler.ErrCrs, err, "geo transform init for EPSG failed")
		}
		lon, lat, _ := t.geo.GeographicOrigin()
		*centerX = lon
		*centerY = lat
	case metadata.SrsWKT:
		if err := t.geo.InitFromWkt(md.Srs, &origin); err != nil {
			return md, true, tiler.Wrap(tiler.ErrCrs, err, "geo transform init for WKT failed")
		}
		lon, lat, _ := t.geo.GeographicOrigin()
		*centerX = lon
		*centerY = lat
	}
	return md, true, nil
}

func (t *Tiler) collectWorkUnits(oblique bool, dataDir, outDir string, centerX, centerY float64, maxLevel int, opts *tiler.TilerOptions) ([]*tilerio.WorkUnit, error) {
	base := opts.Copy()
	base.CenterX = centerX
	base.CenterY = centerY
	base.MaxLevel = maxLevel

	var units []*tilerio.WorkUnit

	if oblique {
		tileNames := t.fileFinder.ScanTileDirectories(dataDir)
		if len(tileNames) == 0 {
			return nil, tiler.Errorf(tiler.ErrIo, "no Tile_* directories found in %s", dataDir)
		}
		for _, name := range tileNames {
			units = append(units, &tilerio.WorkUnit{
				TileName:   name,
				OsgbPath:   filepath.Join(dataDir, name, name+".osgb"),
				OutputPath: filepath.Join(outDir, "Data", name),
				TilesetURI: "./Data/" + name + "/tileset.json",
				Opts:       base,
			})
		}
		return units, nil
	}

	// Flat mode: the input folder either holds OSGB files itself or fans out
	// into OSGB-bearing subdirectories.
	if root := rootOsgbInFolder(t.fileFinder, dataDir); root != "" {
		name := filepath.Base(dataDir)
		if name == "" || name == "." {
			name = "output"
		}
		units = append(units, &tilerio.WorkUnit{
			TileName:   name,
			OsgbPath:   root,
			OutputPath: filepath.Join(outDir, name),
			TilesetURI: "./" + name + "/tileset.json",
			Opts:       base,
		})
		return units, nil
	}

	for _, folder := range t.fileFinder.ScanOsgbFolders(dataDir) {
		folderPath := filepath.Join(dataDir, folder)
		root := rootOsgbInFolder(t.fileFinder, folderPath)
		if root == "" {
			continue
		}
		units = append(units, &tilerio.WorkUnit{
			TileName:   folder,
			OsgbPath:   root,
			OutputPath: filepath.Join(outDir, folder),
			TilesetURI: "./" + folder + "/tileset.json",
			Opts:       base,
		})
	}
	return units, nil
}

// rootOsgbInFolder picks the folder's root file: the first *.osgb without a
// "_L" level marker, falling back to the first file found.
func rootOsgbInFolder(finder tools.FileFinder, folderPath string) string {
	files := finder.ScanOsgbFiles(folderPath, false)
	if len(files) == 0 {
		return ""
	}
	for _, f := range files {
		if !strings.Contains(filepath.Base(f), "_L") {
			return f
		}
	}
	return files[0]
}

// runPool fans the work units across one consumer per hardware thread (or
// TilerBatchOptions.Parallelism consumers when set), never more than there are
// units, and gathers the successful tile results.
func (t *Tiler) runPool(units []*tilerio.WorkUnit, opts *tiler.TilerOptions) []tilerio.TileResult {
	workers := runtime.NumCPU()
	if opts.TilerBatchOptions != nil && opts.TilerBatchOptions.Parallelism > 0 {
		workers = opts.TilerBatchOptions.Parallelism
	}
	if workers > len(units) {
		workers = len(units)
	}

	work := make(chan *tilerio.WorkUnit, len(units))
	results := make(chan tilerio.TileResult, len(units))
	errchan := make(chan error, len(units))

	var producerWg sync.WaitGroup
	producerWg.Add(1)
	go tilerio.NewStandardProducer(units).Produce(work, &producerWg)

	var consumerWg sync.WaitGroup
	consumer := tilerio.NewStandardConsumer(&tileConverter{tiler: t})
	for i := 0; i < workers; i++ {
		consumerWg.Add(1)
		go consumer.Consume(work, results, errchan, &consumerWg)
	}

	producerWg.Wait()
	consumerWg.Wait()
	close(results)
	close(errchan)

	for err := range errchan {
		t.setLastError(err)
	}

	var collected []tilerio.TileResult
	for r := range results {
		collected = append(collected, r)
	}
	return collected
}

// tileConverter adapts the Tiler to the io pool's per-tile interface.
type tileConverter struct {
	tiler *Tiler
}

func (c *tileConverter) ConvertTile(unit *tilerio.WorkUnit) (tilerio.TileResult, error) {
	result, err := c.tiler.convertB3dmSingle(unit.OsgbPath, unit.OutputPath, unit.Opts.MaxLevel, unit.Opts)
	if err != nil {
		return tilerio.TileResult{}, err
	}

	if err := tools.WriteFile(filepath.Join(unit.OutputPath, "tileset.json"), result.TilesetJSON); err != nil {
		return tilerio.TileResult{}, tiler.Wrap(tiler.ErrIo, err, "write tile tileset.json")
	}

	return tilerio.TileResult{
		TileName:   unit.TileName,
		TilesetURI: unit.TilesetURI,
		Root:       result.Root,
		BBox:       result.box,
	}, nil
}
