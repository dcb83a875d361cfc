package otp

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/otp-analysis/pkg/otp/models"
)

var (
	errNoShapefile        = errors.New("archive has no .shp member")
	errManyShapefiles     = errors.New("archive has more than one .shp member")
	errNotPolygonLayer    = errors.New("not a polygon layer")
	maxArchiveMemberBytes = int64(512 << 20)
)

// mkdirTemp creates the extraction directory of one archive.
var mkdirTemp = os.MkdirTemp

// parseArchive extracts a zipped shapefile into a temporary directory and
// reads its single polygon layer. The directory is removed on return.
func parseArchive(body []byte) ([]models.Catchment, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, parseErr("isochrone archive", err)
	}

	dir, err := mkdirTemp("", "otp-isochrone-*")
	if err != nil {
		return nil, fmt.Errorf("creating extraction directory: %w", err)
	}
	defer os.RemoveAll(dir)

	var layers []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		// Members are flattened into dir; no path in the archive escapes it.
		name := filepath.Base(f.Name)
		if name == "." || name == ".." || name == string(filepath.Separator) {
			continue
		}
		dst := filepath.Join(dir, name)
		if err := extractFile(f, dst); err != nil {
			return nil, parseErr("isochrone archive member "+f.Name, err)
		}
		if strings.EqualFold(filepath.Ext(name), ".shp") {
			layers = append(layers, dst)
		}
	}

	switch len(layers) {
	case 0:
		return nil, parseErr("isochrone archive", errNoShapefile)
	case 1:
	default:
		return nil, parseErr("isochrone archive", errManyShapefiles)
	}

	return readShapefile(layers[0])
}

func extractFile(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening member: %w", err)
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	n, err := io.Copy(out, io.LimitReader(rc, maxArchiveMemberBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	if n > maxArchiveMemberBytes {
		return fmt.Errorf("member exceeds %d bytes", maxArchiveMemberBytes)
	}
	return nil
}

// readShapefile returns one catchment per polygon record. Attributes from
// the .dbf table become catchment properties; null shapes are skipped.
func readShapefile(path string) ([]models.Catchment, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, parseErr("shapefile "+filepath.Base(path), err)
	}
	defer r.Close()

	if r.GeometryType != shp.POLYGON {
		return nil, parseErr("shapefile "+filepath.Base(path), fmt.Errorf("%w: shape type %d", errNotPolygonLayer, r.GeometryType))
	}

	fields := r.Fields()
	var out []models.Catchment
	for r.Next() {
		row, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || len(poly.Points) == 0 {
			continue
		}

		props := make(map[string]interface{}, len(fields))
		for i, f := range fields {
			// dbf cells are padded with spaces or NULs
			props[f.String()] = strings.Trim(r.ReadAttribute(row, i), " \x00")
		}
		out = append(out, models.Catchment{
			Geometry:   polygonRings(poly),
			Properties: props,
		})
	}
	if err := r.Err(); err != nil {
		return nil, parseErr("shapefile "+filepath.Base(path), err)
	}
	return out, nil
}

// polygonRings groups the parts of a shapefile polygon. A part wound like
// the current outer ring starts a new polygon; one wound the other way is
// a hole of the current polygon.
func polygonRings(p *shp.Polygon) orb.MultiPolygon {
	var mp orb.MultiPolygon
	var outer orb.Orientation

	for i := range p.Parts {
		start := int(p.Parts[i])
		end := len(p.Points)
		if i+1 < len(p.Parts) {
			end = int(p.Parts[i+1])
		}
		if start < 0 || start >= end || end > len(p.Points) {
			continue
		}

		ring := make(orb.Ring, 0, end-start+1)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}

		o := ring.Orientation()
		if len(mp) == 0 || o == outer {
			mp = append(mp, orb.Polygon{ring})
			outer = o
			continue
		}
		last := len(mp) - 1
		mp[last] = append(mp[last], ring)
	}
	return mp
}
