// SPDX-License-Identifier: AGPL-3.0-or-later

// Package shapefile reads the subset of the ESRI Shapefile binary
// format TIGER/Line bulk extracts use: type 5 (Polygon) records from a
// .shp file. No shapefile library appears anywhere in the retrieved
// corpus (see DESIGN.md), so this is a minimal stdlib-only reader
// scoped to exactly what pkg/provider/tiger needs.
package shapefile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/voterprotocol/shadowatlas/internal/errs"
	"github.com/voterprotocol/shadowatlas/internal/geom"
)

const shapeTypePolygon = 5

// ReadPolygons parses every Polygon-type record in a .shp stream into
// geom.Polygon values, in file order. Non-polygon shape types yield a
// SchemaError.
func ReadPolygons(r io.Reader) ([]geom.Polygon, error) {
	var header [100]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errs.Wrap(errs.SchemaError, "read shapefile header", err)
	}
	shapeType := binary.LittleEndian.Uint32(header[32:36])
	if shapeType != shapeTypePolygon {
		return nil, errs.New(errs.SchemaError, fmt.Sprintf("unsupported shapefile type %d", shapeType))
	}

	var polys []geom.Polygon
	for {
		var recHeader [8]byte
		if _, err := io.ReadFull(r, recHeader[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, errs.Wrap(errs.SchemaError, "read record header", err)
		}
		contentWords := binary.BigEndian.Uint32(recHeader[4:8])
		contentBytes := int(contentWords) * 2
		buf := make([]byte, contentBytes)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errs.Wrap(errs.SchemaError, "read record body", err)
		}
		poly, err := parsePolygonRecord(buf)
		if err != nil {
			return nil, err
		}
		polys = append(polys, poly)
	}
	return polys, nil
}

func parsePolygonRecord(buf []byte) (geom.Polygon, error) {
	if len(buf) < 44 {
		return geom.Polygon{}, errs.New(errs.SchemaError, "polygon record too short")
	}
	recordType := binary.LittleEndian.Uint32(buf[0:4])
	if recordType != shapeTypePolygon {
		return geom.Polygon{}, errs.New(errs.SchemaError, fmt.Sprintf("unexpected record type %d", recordType))
	}

	numParts := int(binary.LittleEndian.Uint32(buf[36:40]))
	numPoints := int(binary.LittleEndian.Uint32(buf[40:44]))

	partsStart := 44
	partsEnd := partsStart + numParts*4
	if len(buf) < partsEnd {
		return geom.Polygon{}, errs.New(errs.SchemaError, "polygon record truncated parts")
	}
	parts := make([]int, numParts)
	for i := 0; i < numParts; i++ {
		parts[i] = int(binary.LittleEndian.Uint32(buf[partsStart+i*4 : partsStart+i*4+4]))
	}

	pointsStart := partsEnd
	pointsNeeded := pointsStart + numPoints*16
	if len(buf) < pointsNeeded {
		return geom.Polygon{}, errs.New(errs.SchemaError, "polygon record truncated points")
	}

	rings := make([]geom.Ring, 0, numParts)
	for i := 0; i < numParts; i++ {
		start := parts[i]
		end := numPoints
		if i+1 < numParts {
			end = parts[i+1]
		}
		ring := make(geom.Ring, 0, end-start)
		for p := start; p < end; p++ {
			off := pointsStart + p*16
			x := littleEndianFloat64(buf[off : off+8])
			y := littleEndianFloat64(buf[off+8 : off+16])
			ring = append(ring, geom.Point{x, y})
		}
		rings = append(rings, ring)
	}

	return geom.Polygon{Rings: rings}, nil
}

func littleEndianFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
