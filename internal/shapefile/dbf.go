// SPDX-License-Identifier: AGPL-3.0-or-later

package shapefile

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/voterprotocol/shadowatlas/internal/errs"
)

// dbfField describes one column of a .dbf table (the xBase format
// TIGER/Line pairs with every .shp).
type dbfField struct {
	name   string
	offset int
	length int
}

// ReadAttributes parses a .dbf stream into one map[column]value per
// record, in file order, aligned by index with ReadPolygons's output for
// the companion .shp.
func ReadAttributes(r io.Reader) ([]map[string]string, error) {
	var header [32]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errs.Wrap(errs.SchemaError, "read dbf header", err)
	}
	numRecords := int(binary.LittleEndian.Uint32(header[4:8]))
	headerLen := int(binary.LittleEndian.Uint16(header[8:10]))
	recordLen := int(binary.LittleEndian.Uint16(header[10:12]))

	fieldBytes := headerLen - 32 - 1 // trailing 0x0D terminator
	if fieldBytes < 0 {
		return nil, errs.New(errs.SchemaError, "dbf header length too small")
	}
	fieldDescBuf := make([]byte, fieldBytes)
	if _, err := io.ReadFull(r, fieldDescBuf); err != nil {
		return nil, errs.Wrap(errs.SchemaError, "read dbf field descriptors", err)
	}
	var terminator [1]byte
	if _, err := io.ReadFull(r, terminator[:]); err != nil {
		return nil, errs.Wrap(errs.SchemaError, "read dbf header terminator", err)
	}

	var fields []dbfField
	offset := 1 // record's leading deletion-flag byte
	for i := 0; i+32 <= len(fieldDescBuf); i += 32 {
		name := strings.TrimRight(string(fieldDescBuf[i:i+11]), "\x00")
		length := int(fieldDescBuf[i+16])
		fields = append(fields, dbfField{name: name, offset: offset, length: length})
		offset += length
	}

	records := make([]map[string]string, 0, numRecords)
	recBuf := make([]byte, recordLen)
	for rec := 0; rec < numRecords; rec++ {
		if _, err := io.ReadFull(r, recBuf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, errs.Wrap(errs.SchemaError, "read dbf record", err)
		}
		row := make(map[string]string, len(fields))
		for _, f := range fields {
			if f.offset+f.length > len(recBuf) {
				continue
			}
			row[f.name] = strings.TrimSpace(string(recBuf[f.offset : f.offset+f.length]))
		}
		records = append(records, row)
	}
	return records, nil
}
