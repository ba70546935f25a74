// Package metadata parses the dataset-level metadata.xml that declares the
// source SRS and its origin offset. The file is an ASCII element subset, so a
// plain tag extraction is enough; no XML library semantics are relied on.
package metadata

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// SrsKind discriminates the one active SRS declaration.
type SrsKind int

const (
	SrsENU SrsKind = iota
	SrsEPSG
	SrsWKT
)

// Metadata is the parsed content of metadata.xml.
type Metadata struct {
	Version string
	Kind    SrsKind

	// EPSG code, when Kind == SrsEPSG.
	EpsgCode int
	// Geographic origin in degrees, when Kind == SrsENU.
	CenterLat float64
	CenterLon float64
	// Raw SRS text; for SrsWKT this is the WKT definition.
	Srs string

	// SRSOrigin offset in source projected coordinates.
	OffsetX float64
	OffsetY float64
	OffsetZ float64
}

// ParseFile reads and parses a metadata.xml.
func ParseFile(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata.xml: %w", err)
	}
	return Parse(string(data))
}

// Parse parses metadata.xml content.
func Parse(xml string) (*Metadata, error) {
	md := &Metadata{}

	md.Version = extractAttrValue(xml, "ModelMetadata", "version")
	if md.Version == "" {
		md.Version = "1"
	}

	srs := strings.TrimSpace(extractTag(xml, "SRS"))
	if srs == "" {
		return nil, errors.New("SRS tag not found in metadata.xml")
	}
	md.Srs = srs

	origin := strings.TrimSpace(extractTag(xml, "SRSOrigin"))
	if origin == "" {
		return nil, errors.New("SRSOrigin tag not found in metadata.xml")
	}

	if err := md.parseSrs(srs); err != nil {
		return nil, err
	}
	if err := md.parseOrigin(origin); err != nil {
		return nil, err
	}
	return md, nil
}

func (md *Metadata) parseSrs(srs string) error {
	prefix, rest, found := strings.Cut(srs, ":")
	if !found {
		md.Kind = SrsWKT
		return nil
	}
	switch strings.TrimSpace(prefix) {
	case "ENU":
		md.Kind = SrsENU
		coords := strings.Split(rest, ",")
		if len(coords) < 2 {
			return errors.New("ENU coordinates format invalid")
		}
		lat, err := parseNumber(coords[0])
		if err != nil {
			return fmt.Errorf("parse ENU latitude: %w", err)
		}
		lon, err := parseNumber(coords[1])
		if err != nil {
			return fmt.Errorf("parse ENU longitude: %w", err)
		}
		md.CenterLat = lat
		md.CenterLon = lon
	case "EPSG":
		md.Kind = SrsEPSG
		code, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			return fmt.Errorf("parse EPSG code: %w", err)
		}
		md.EpsgCode = code
	default:
		// A colon inside an authority clause of a WKT string, or an SRS
		// convention this tool does not know; hand it to the CRS library.
		md.Kind = SrsWKT
	}
	return nil
}

func (md *Metadata) parseOrigin(origin string) error {
	parts := strings.Split(origin, ",")
	if len(parts) < 2 {
		return errors.New("SRSOrigin format invalid (expected x,y,z)")
	}
	x, err := parseNumber(parts[0])
	if err != nil {
		return fmt.Errorf("parse SRSOrigin x: %w", err)
	}
	y, err := parseNumber(parts[1])
	if err != nil {
		return fmt.Errorf("parse SRSOrigin y: %w", err)
	}
	md.OffsetX = x
	md.OffsetY = y
	if len(parts) >= 3 {
		z, err := parseNumber(parts[2])
		if err != nil {
			return fmt.Errorf("parse SRSOrigin z: %w", err)
		}
		md.OffsetZ = z
	}
	return nil
}

// parseNumber goes through decimal so huge projected offsets survive the
// string round trip exactly as written before the final float conversion.
func parseNumber(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// extractTag returns the body between <tag> and </tag>, or "".
func extractTag(xml, tag string) string {
	start := strings.Index(xml, "<"+tag+">")
	if start < 0 {
		return ""
	}
	start += len(tag) + 2
	end := strings.Index(xml[start:], "</"+tag+">")
	if end < 0 {
		return ""
	}
	return xml[start : start+end]
}

// extractAttrValue pulls a quoted attribute value from an element opening tag.
func extractAttrValue(xml, tag, attr string) string {
	open := strings.Index(xml, "<"+tag)
	if open < 0 {
		return ""
	}
	stop := strings.Index(xml[open:], ">")
	if stop < 0 {
		return ""
	}
	element := xml[open : open+stop]
	key := attr + "=\""
	at := strings.Index(element, key)
	if at < 0 {
		return ""
	}
	rest := element[at+len(key):]
	end := strings.Index(rest, "\"")
	if end < 0 {
		return ""
	}
	return rest[:end]
}
