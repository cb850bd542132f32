// SPDX-License-Identifier: AGPL-3.0-or-later

package tiger_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voterprotocol/shadowatlas/pkg/provider"
	"github.com/voterprotocol/shadowatlas/pkg/provider/tiger"
)

func buildSHPBytes(ring [][2]float64) []byte {
	var content bytes.Buffer
	binary.Write(&content, binary.LittleEndian, int32(5))
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

func buildDBFBytes(geoid, name string) []byte {
	cols := []string{"GEOID", "NAMELSAD"}
	widths := []int{4, 20}
	recordLen := 1 + widths[0] + widths[1]

	var fieldDescs bytes.Buffer
	for i, col := range cols {
		nameBuf := make([]byte, 11)
		copy(nameBuf, col)
		fieldDescs.Write(nameBuf)
		fieldDescs.WriteByte('C')
		fieldDescs.Write(make([]byte, 4))
		fieldDescs.WriteByte(byte(widths[i]))
		fieldDescs.Write(make([]byte, 15))
	}
	headerLen := 32 + fieldDescs.Len() + 1

	var out bytes.Buffer
	header := make([]byte, 32)
	binary.LittleEndian.PutUint32(header[4:8], 1)
	binary.LittleEndian.PutUint16(header[8:10], uint16(headerLen))
	binary.LittleEndian.PutUint16(header[10:12], uint16(recordLen))
	out.Write(header)
	out.Write(fieldDescs.Bytes())
	out.WriteByte(0x0D)

	out.WriteByte(' ')
	geoidField := make([]byte, widths[0])
	copy(geoidField, geoid)
	for i := len(geoid); i < widths[0]; i++ {
		geoidField[i] = ' '
	}
	out.Write(geoidField)

	nameField := make([]byte, widths[1])
	copy(nameField, name)
	for i := len(name); i < widths[1]; i++ {
		nameField[i] = ' '
	}
	out.Write(nameField)
	return out.Bytes()
}

func buildBundleZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	shpW, err := zw.Create("tl_2024_06_cd119.shp")
	require.NoError(t, err)
	ring := [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	_, err = shpW.Write(buildSHPBytes(ring))
	require.NoError(t, err)

	dbfW, err := zw.Create("tl_2024_06_cd119.dbf")
	require.NoError(t, err)
	_, err = dbfW.Write(buildDBFBytes("0601", "District 1"))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestTigerDownloadUsesSourceURLOverride(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write(buildBundleZip(t))
	}))
	defer server.Close()

	p := tiger.New(provider.NewContentCache(afero.NewMemMapFs(), "/cache"))
	opts := provider.Options{Layer: "cd119", StateFIPS: "06", Year: 2024, SourceURL: server.URL}

	raw, err := p.DownloadLayer(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Contains(t, gotUA, "ShadowAtlas")

	boundaries, err := p.Transform(raw, opts)
	require.NoError(t, err)
	require.Len(t, boundaries, 1)
	assert.Equal(t, "0601", boundaries[0].GEOID)
}

func TestTigerTransformProducesNormalizedBoundary(t *testing.T) {
	p := tiger.New(provider.NewContentCache(afero.NewMemMapFs(), "/cache"))
	opts := provider.Options{Layer: "cd119", StateFIPS: "06", Year: 2024}

	boundaries, err := p.Transform([]provider.RawFile{{Name: "bundle.zip", Data: buildBundleZip(t)}}, opts)
	require.NoError(t, err)
	require.Len(t, boundaries, 1)
	assert.Equal(t, "0601", boundaries[0].GEOID)
	assert.Equal(t, "District 1", boundaries[0].Name)
	assert.Equal(t, "CD", boundaries[0].Layer)
}

func TestTigerTransformRejectsMissingShapefileMember(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("readme.txt")
	w.Write([]byte("no shapefile here"))
	zw.Close()

	p := tiger.New(nil)
	_, err := p.Transform([]provider.RawFile{{Name: "bundle.zip", Data: buf.Bytes()}}, provider.Options{Layer: "cd119", StateFIPS: "06"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "missing"))
}
