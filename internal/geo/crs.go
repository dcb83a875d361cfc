// Package geo holds the geometry plumbing around routing queries: coordinate
// reference checks, reprojection to WGS84, destination buffers and the
// buffer/catchment intersection used to pre-filter OD pairs.
package geo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/otp-analysis/pkg/otp/models"
)

var (
	// ErrMissingCRS is returned for point sets with no declared coordinate reference.
	ErrMissingCRS = errors.New("coordinate reference not defined")
	// ErrUnsupportedCRS is returned for references that cannot be reprojected.
	ErrUnsupportedCRS = errors.New("unsupported coordinate reference")
)

const webMercator = "EPSG:3857"

// NormalizeCRS maps the accepted spellings of a reference to its EPSG code.
func NormalizeCRS(crs string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(crs))
	switch c {
	case "":
		return "", ErrMissingCRS
	case "EPSG:4326", "4326", "WGS84", "URN:OGC:DEF:CRS:OGC:1.3:CRS84", "URN:OGC:DEF:CRS:EPSG::4326":
		return models.WGS84, nil
	case "EPSG:3857", "3857", "EPSG:900913", "URN:OGC:DEF:CRS:EPSG::3857":
		return webMercator, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedCRS, crs)
}

// ValidateCRS checks that crs is declared and can be reprojected.
func ValidateCRS(crs string) error {
	_, err := NormalizeCRS(crs)
	return err
}

// ToWGS84 returns a copy of ps expressed in WGS84.
func ToWGS84(ps models.PointSet) (models.PointSet, error) {
	crs, err := NormalizeCRS(ps.CRS)
	if err != nil {
		return models.PointSet{}, err
	}
	out := models.PointSet{CRS: models.WGS84, Locations: make([]models.Location, len(ps.Locations))}
	for i, loc := range ps.Locations {
		p, err := PointToWGS84(loc.Point, crs)
		if err != nil {
			return models.PointSet{}, err
		}
		out.Locations[i] = models.Location{ID: loc.ID, Point: p}
	}
	return out, nil
}

// PointToWGS84 reprojects a single point from crs.
func PointToWGS84(p orb.Point, crs string) (orb.Point, error) {
	c, err := NormalizeCRS(crs)
	if err != nil {
		return orb.Point{}, err
	}
	if c == webMercator {
		return project.Point(p, project.Mercator.ToWGS84), nil
	}
	return p, nil
}
