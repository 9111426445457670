package maxmind

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strings"
	"sync/atomic"

	geoip2 "github.com/oschwald/geoip2-golang"

	"github.com/prebid/prebid-privacy/geolocation"
)

const Vendor = "maxmind"

// DatabaseFileName is the City database inside a GeoLite2 release archive. Releases nest it under a
// dated directory, so only the base name is matched.
const DatabaseFileName = "GeoLite2-City.mmdb"

var errDatabaseNotInArchive = errors.New(DatabaseFileName + " not found in archive")

// GeoLocation resolves ip addresses against a MaxMind City database. The database can be swapped
// while lookups are running.
type GeoLocation struct {
	reader atomic.Pointer[geoip2.Reader]
}

// NewGeoLocation loads the database from a GeoLite2 tar.gz archive.
func NewGeoLocation(archivePath string) (*GeoLocation, error) {
	geo := &GeoLocation{}
	if err := geo.SetDataPath(archivePath); err != nil {
		return nil, err
	}
	return geo, nil
}

func (g *GeoLocation) Lookup(_ context.Context, ipAddress string) (*geolocation.GeoInfo, error) {
	ip := net.ParseIP(strings.TrimSpace(ipAddress))
	if ip == nil {
		return nil, geolocation.ErrLookupIPInvalid
	}

	reader := g.reader.Load()
	if reader == nil {
		return nil, geolocation.ErrDatabaseUnavailable
	}

	record, err := reader.City(ip)
	if err != nil {
		return nil, fmt.Errorf("maxmind lookup of %s: %w", ipAddress, err)
	}
	return toGeoInfo(record), nil
}

func toGeoInfo(record *geoip2.City) *geolocation.GeoInfo {
	info := &geolocation.GeoInfo{
		Vendor:    Vendor,
		Continent: record.Continent.Code,
		Country:   record.Country.IsoCode,
		Zip:       record.Postal.Code,
		Lat:       record.Location.Latitude,
		Lon:       record.Location.Longitude,
		TimeZone:  record.Location.TimeZone,
		City:      record.City.Names["en"],
	}
	if len(record.Subdivisions) > 0 {
		info.Region = record.Subdivisions[0].IsoCode
	}
	return info
}

// SetDataPath replaces the database with the one found in the archive. The previous database is
// kept when loading fails.
func (g *GeoLocation) SetDataPath(archivePath string) error {
	data, err := readDatabase(archivePath)
	if err != nil {
		return fmt.Errorf("maxmind database %s: %w", archivePath, err)
	}

	reader, err := geoip2.FromBytes(data)
	if err != nil {
		return fmt.Errorf("maxmind database %s: %w", archivePath, err)
	}

	if previous := g.reader.Swap(reader); previous != nil {
		previous.Close()
	}
	return nil
}

// Close releases the loaded database. Lookups fail afterwards.
func (g *GeoLocation) Close() error {
	if reader := g.reader.Swap(nil); reader != nil {
		return reader.Close()
	}
	return nil
}

func readDatabase(archivePath string) ([]byte, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil, errDatabaseNotInArchive
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar file: %w", err)
		}
		if header.Typeflag == tar.TypeReg && path.Base(header.Name) == DatabaseFileName {
			return io.ReadAll(tarReader)
		}
	}
}
