// Package geo optionally annotates the benchmark target with MaxMind
// city data. Useful when the target is a remote reflector rather than a
// device on the bench.
package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// Location is the subset of the city record the report keeps.
type Location struct {
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
	ASN     uint   `json:"asn,omitempty"`
	ASNOrg  string `json:"asn_org,omitempty"`
}

type Resolver struct {
	db *maxminddb.Reader
}

// Open loads a GeoLite2/GeoIP2 database. An empty path yields a nil
// resolver, which every method tolerates.
func Open(path string) (*Resolver, error) {
	if path == "" {
		return nil, nil
	}
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &Resolver{db: db}, nil
}

func (r *Resolver) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Lookup resolves the target IP. A nil resolver or a miss returns an
// empty Location and no error; only a corrupt database read errors.
func (r *Resolver) Lookup(ip net.IP) (Location, error) {
	if r == nil || r.db == nil || ip == nil {
		return Location{}, nil
	}

	var record struct {
		Country struct {
			Names map[string]string `maxminddb:"names"`
		} `maxminddb:"country"`
		City struct {
			Names map[string]string `maxminddb:"names"`
		} `maxminddb:"city"`
		ASN    uint   `maxminddb:"autonomous_system_number"`
		ASNOrg string `maxminddb:"autonomous_system_organization"`
	}
	if err := r.db.Lookup(ip, &record); err != nil {
		return Location{}, fmt.Errorf("geoip lookup: %w", err)
	}
	return Location{
		Country: record.Country.Names["en"],
		City:    record.City.Names["en"],
		ASN:     record.ASN,
		ASNOrg:  record.ASNOrg,
	}, nil
}
