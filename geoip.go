package proxyscraperchecker

import (
	"fmt"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// ASNRecord is the subset of a GeoLite2-ASN lookup this app exports.
// Grounded on spec.md 3/9's "asn? structured lookup result".
type ASNRecord struct {
	Number       uint   `maxminddb:"autonomous_system_number" json:"number"`
	Organization string `maxminddb:"autonomous_system_organization" json:"organization"`
}

// GeolocationRecord is the subset of a GeoLite2-City lookup this app
// exports.
type GeolocationRecord struct {
	Country   string  `json:"country,omitempty"`
	City      string  `json:"city,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// cityRecord mirrors only the GeoLite2-City fields this app cares about;
// MaxMind's schema nests names under a language map and coordinates under
// `location`.
type cityRecord struct {
	Country struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// IPDatabases holds memory-mapped readers for the ASN/City mmdb files,
// opened once at startup and shared read-only across every checked proxy's
// enrichment lookup. Grounded on original_source/src/ipdb.rs::open_mmap,
// using github.com/oschwald/maxminddb-golang for the actual mmap+decode
// (no library in the retrieved pack implements the MaxMind DB format, so
// this dependency is named rather than grounded on an example repo — see
// DESIGN.md).
type IPDatabases struct {
	asn  *maxminddb.Reader
	city *maxminddb.Reader
}

// OpenIPDatabases memory-maps whichever of asn/city is requested enabled.
// Either reader may be nil if its flag is false; callers must check before
// looking up.
func OpenIPDatabases(includeASN, includeGeolocation bool) (*IPDatabases, error) {
	dbs := &IPDatabases{}

	if includeASN {
		path, err := IPDatabaseASN.dbPath()
		if err != nil {
			return nil, fmt.Errorf("get ASN database path: %w", err)
		}
		reader, err := maxminddb.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open ASN database %s: %w", path, err)
		}
		dbs.asn = reader
	}

	if includeGeolocation {
		path, err := IPDatabaseCity.dbPath()
		if err != nil {
			return nil, fmt.Errorf("get geolocation database path: %w", err)
		}
		reader, err := maxminddb.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open geolocation database %s: %w", path, err)
		}
		dbs.city = reader
	}

	return dbs, nil
}

// Close releases both mmaps, if open.
func (d *IPDatabases) Close() error {
	var err error
	if d.asn != nil {
		err = d.asn.Close()
	}
	if d.city != nil {
		if cErr := d.city.Close(); err == nil {
			err = cErr
		}
	}
	return err
}

// LookupASN returns the ASN record for ip, or nil if the ASN database
// wasn't opened or has no entry for ip.
func (d *IPDatabases) LookupASN(ip net.IP) *ASNRecord {
	if d.asn == nil || ip == nil {
		return nil
	}
	var rec ASNRecord
	if err := d.asn.Lookup(ip, &rec); err != nil || rec.Number == 0 {
		return nil
	}
	return &rec
}

// LookupGeolocation returns the City-level geolocation record for ip, or
// nil if the City database wasn't opened or has no entry for ip.
func (d *IPDatabases) LookupGeolocation(ip net.IP) *GeolocationRecord {
	if d.city == nil || ip == nil {
		return nil
	}
	var rec cityRecord
	if err := d.city.Lookup(ip, &rec); err != nil {
		return nil
	}
	out := &GeolocationRecord{
		Country:   rec.Country.Names["en"],
		City:      rec.City.Names["en"],
		Latitude:  rec.Location.Latitude,
		Longitude: rec.Location.Longitude,
	}
	if out.Country == "" && out.City == "" && out.Latitude == 0 && out.Longitude == 0 {
		return nil
	}
	return out
}
