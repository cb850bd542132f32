// SPDX-License-Identifier: AGPL-3.0-or-later

package shapefile_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voterprotocol/shadowatlas/internal/shapefile"
)

// buildSHP constructs a minimal single-ring-polygon .shp stream: a
// 100-byte header (shape type 5 at offset 32) followed by one record
// whose content is a standard polygon record (box + numParts + numPoints
// + parts[] + points[]).
func buildSHP(t *testing.T, ring [][2]float64) []byte {
	t.Helper()
	var content bytes.Buffer
	binary.Write(&content, binary.LittleEndian, int32(5)) // record shape type
	binary.Write(&content, binary.LittleEndian, [4]float64{0, 0, 0, 0})
	binary.Write(&content, binary.LittleEndian, int32(1))
	binary.Write(&content, binary.LittleEndian, int32(len(ring)))
	binary.Write(&content, binary.LittleEndian, int32(0))
	for _, pt := range ring {
		binary.Write(&content, binary.LittleEndian, pt[0])
		binary.Write(&content, binary.LittleEndian, pt[1])
	}

	var out bytes.Buffer
	header := make([]byte, 100)
	binary.LittleEndian.PutUint32(header[32:36], 5)
	out.Write(header)

	recHeader := make([]byte, 8)
	binary.BigEndian.PutUint32(recHeader[0:4], 1)
	binary.BigEndian.PutUint32(recHeader[4:8], uint32(content.Len()/2))
	out.Write(recHeader)
	out.Write(content.Bytes())

	return out.Bytes()
}

func TestReadPolygonsSingleRing(t *testing.T) {
	ring := [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	data := buildSHP(t, ring)

	polys, err := shapefile.ReadPolygons(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, polys, 1)
	require.Len(t, polys[0].Rings, 1)
	assert.Len(t, polys[0].Rings[0], 5)
	assert.Equal(t, 0.0, polys[0].Rings[0][0][0])
	assert.Equal(t, 1.0, polys[0].Rings[0][2][0])
}

func TestReadPolygonsRejectsWrongShapeType(t *testing.T) {
	header := make([]byte, 100)
	binary.LittleEndian.PutUint32(header[32:36], 1) // point, not polygon
	_, err := shapefile.ReadPolygons(bytes.NewReader(header))
	require.Error(t, err)
}

func buildDBF(t *testing.T, rows []map[string]string, cols []string, widths []int) []byte {
	t.Helper()
	recordLen := 1
	for _, w := range widths {
		recordLen += w
	}

	var fieldDescs bytes.Buffer
	for i, col := range cols {
		name := make([]byte, 11)
		copy(name, col)
		fieldDescs.Write(name)
		fieldDescs.WriteByte('C')
		fieldDescs.Write(make([]byte, 4))
		fieldDescs.WriteByte(byte(widths[i]))
		fieldDescs.Write(make([]byte, 15))
	}
	headerLen := 32 + fieldDescs.Len() + 1

	var out bytes.Buffer
	header := make([]byte, 32)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(rows)))
	binary.LittleEndian.PutUint16(header[8:10], uint16(headerLen))
	binary.LittleEndian.PutUint16(header[10:12], uint16(recordLen))
	out.Write(header)
	out.Write(fieldDescs.Bytes())
	out.WriteByte(0x0D)

	for _, row := range rows {
		out.WriteByte(' ') // not deleted
		for i, col := range cols {
			val := row[col]
			field := make([]byte, widths[i])
			copy(field, val)
			for j := len(val); j < widths[i]; j++ {
				field[j] = ' '
			}
			out.Write(field)
		}
	}
	return out.Bytes()
}

func TestReadAttributesRoundTrip(t *testing.T) {
	cols := []string{"GEOID", "NAMELSAD"}
	widths := []int{4, 20}
	rows := []map[string]string{
		{"GEOID": "0601", "NAMELSAD": "District 1"},
		{"GEOID": "0602", "NAMELSAD": "District 2"},
	}
	data := buildDBF(t, rows, cols, widths)

	got, err := shapefile.ReadAttributes(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "0601", got[0]["GEOID"])
	assert.Equal(t, "District 2", got[1]["NAMELSAD"])
}
