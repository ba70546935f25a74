package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0777))
	require.NoError(t, os.WriteFile(path, []byte("osgb"), 0666))
}

func TestFindRootOsgbSkipsLevelFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Tile_1", "Tile_1_L17_0.osgb"))
	touch(t, filepath.Join(dir, "Tile_1", "Tile_1.osgb"))

	f := NewStandardFileFinder()
	assert.Equal(t, filepath.Join(dir, "Tile_1", "Tile_1.osgb"), f.FindRootOsgb(dir))
}

func TestFindRootOsgbLooksInDataSubdir(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Data", "Tile_1", "Tile_1.osgb"))

	f := NewStandardFileFinder()
	assert.Equal(t, filepath.Join(dir, "Data", "Tile_1", "Tile_1.osgb"), f.FindRootOsgb(dir))
}

func TestFindRootOsgbNoneFound(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Tile_1", "Tile_1_L20_3.osgb"))

	f := NewStandardFileFinder()
	assert.Equal(t, "", f.FindRootOsgb(dir))
}

func TestScanTileDirectories(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Tile_+005_+006", "Tile_+005_+006.osgb"))
	touch(t, filepath.Join(dir, "Tile_+005_+007", "unrelated.osgb"))
	touch(t, filepath.Join(dir, "NotATile", "NotATile.osgb"))

	f := NewStandardFileFinder()
	assert.Equal(t, []string{"Tile_+005_+006"}, f.ScanTileDirectories(dir))
}

func TestScanTileDirectoriesEmpty(t *testing.T) {
	f := NewStandardFileFinder()
	assert.Equal(t, []string{}, f.ScanTileDirectories(t.TempDir()))
}

func TestScanOsgbFolders(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a", "x.osgb"))
	touch(t, filepath.Join(dir, "b", "y.txt"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "c"), 0777))

	f := NewStandardFileFinder()
	assert.Equal(t, []string{"a"}, f.ScanOsgbFolders(dir))
}

func TestScanOsgbFilesRecursive(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "top.osgb"))
	touch(t, filepath.Join(dir, "sub", "deep.osgb"))
	touch(t, filepath.Join(dir, "sub", "skip.txt"))

	f := NewStandardFileFinder()
	assert.Equal(t, []string{filepath.Join(dir, "top.osgb")}, f.ScanOsgbFiles(dir, false))

	recursive := f.ScanOsgbFiles(dir, true)
	assert.Len(t, recursive, 2)
	assert.Contains(t, recursive, filepath.Join(dir, "sub", "deep.osgb"))
}

func TestLevelFromFileName(t *testing.T) {
	assert.Equal(t, 17, LevelFromFileName("Tile_+005_+006_L17_0.osgb"))
	assert.Equal(t, 10, LevelFromFileName("/x/y/Tile_L10_00.osgb"))
	assert.Equal(t, 5, LevelFromFileName("a_L5.osgb"))
	assert.Equal(t, -1, LevelFromFileName("Tile_+005_+006.osgb"))
	assert.Equal(t, -1, LevelFromFileName("a_Lx.osgb"))
}
