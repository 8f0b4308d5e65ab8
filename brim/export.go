package brim

import (
	"context"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// Per-row spatial position of one exported record.
type exportPosition struct {
	z, y, x int
	sample  int
}

// ExportTable writes the result set as a Parquet table, one row per image
// position the scan visited.
//
// Columns are the (z, y, x) grid indices, the physical scan coordinates when
// the group stores them, and one double column per stored (quantity, peak
// type) pair for the given fitted-peak index, named like "Shift_AS". Missing
// per-cell values export as NaN.
func (ar *AnalysisResults) ExportTable(ctx context.Context, w io.Writer, peak int) error {
	type column struct {
		name string
		vals []float64
	}
	var columns []column
	for _, pt := range []PeakType{AntiStokes, Stokes} {
		qts, err := ar.Quantities(ctx, pt, peak)
		if err != nil {
			return err
		}
		for _, q := range qts {
			if q == ElasticContrast {
				continue
			}
			vals, err := ar.quantityValues(ctx, q, pt, peak)
			if err != nil {
				return err
			}
			columns = append(columns, column{name: string(q) + "_" + string(pt), vals: vals})
		}
	}
	if len(columns) == 0 {
		return fmt.Errorf("brim: export: no quantities stored for peak %d: %w", peak, ErrNotFound)
	}

	positions, coords, err := ar.d.exportPositions(ctx)
	if err != nil {
		return err
	}

	group := parquet.Group{
		"z": parquet.Int(32),
		"y": parquet.Int(32),
		"x": parquet.Int(32),
	}
	coordColumns := map[string][]float64{}
	if coords != nil {
		for axis, proj := range coords {
			if proj == nil {
				continue
			}
			name := "coord_" + spatialAxisNames[axis]
			group[name] = parquet.Leaf(parquet.DoubleType)
			coordColumns[name] = proj
		}
	}
	valueColumns := make(map[string][]float64, len(columns))
	for _, col := range columns {
		group[col.name] = parquet.Leaf(parquet.DoubleType)
		valueColumns[col.name] = col.vals
	}
	schema := parquet.NewSchema("analysis_results", group)
	fields := schema.Fields()

	buf := parquet.NewBuffer(schema)
	row := make(parquet.Row, len(fields))
	for _, pos := range positions {
		for i, field := range fields {
			var val parquet.Value
			switch name := field.Name(); name {
			case "z":
				val = parquet.Int32Value(int32(pos.z))
			case "y":
				val = parquet.Int32Value(int32(pos.y))
			case "x":
				val = parquet.Int32Value(int32(pos.x))
			default:
				if proj, ok := coordColumns[name]; ok {
					val = parquet.DoubleValue(proj[pos.sample])
				} else {
					val = parquet.DoubleValue(valueColumns[name][pos.sample])
				}
			}
			row[i] = val.Level(0, 0, i)
		}
		if _, err := buf.WriteRows([]parquet.Row{row}); err != nil {
			return fmt.Errorf("brim: export: %w", err)
		}
	}

	pw := parquet.NewWriter(w, schema, parquet.Compression(&parquet.Zstd))
	if _, err := pw.WriteRowGroup(buf); err != nil {
		return fmt.Errorf("brim: export: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("brim: export: %w", err)
	}
	return nil
}

// exportPositions lists every visited image cell with its sample index, plus
// the per-axis physical coordinates when the group stores them (nil
// otherwise). Dense groups visit every cell in storage order.
func (d *Data) exportPositions(ctx context.Context) ([]exportPosition, [][]float64, error) {
	if !d.sparse {
		shape, err := d.ImageShape(ctx)
		if err != nil {
			return nil, nil, err
		}
		out := make([]exportPosition, 0, shape[0]*shape[1]*shape[2])
		s := 0
		for z := 0; z < shape[0]; z++ {
			for y := 0; y < shape[1]; y++ {
				for x := 0; x < shape[2]; x++ {
					out = append(out, exportPosition{z: z, y: y, x: x, sample: s})
					s++
				}
			}
		}
		return out, nil, nil
	}

	m, err := d.spatialIndexMap(ctx)
	if err != nil {
		return nil, nil, err
	}
	var coords [][]float64
	hasSM, err := d.g.HasGroup(ctx, spatialMapName)
	if err != nil {
		return nil, nil, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
	}
	if hasSM {
		coords, _, _, err = d.scanCoordinates(ctx)
		if err != nil {
			return nil, nil, err
		}
	}
	var out []exportPosition
	flat := 0
	for z := 0; z < m.shape[0]; z++ {
		for y := 0; y < m.shape[1]; y++ {
			for x := 0; x < m.shape[2]; x++ {
				s := m.cells[flat]
				flat++
				if s < 0 {
					continue
				}
				out = append(out, exportPosition{z: z, y: y, x: x, sample: int(s)})
			}
		}
	}
	return out, coords, nil
}
