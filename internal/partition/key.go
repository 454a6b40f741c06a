package partition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mlenz/stockpipe/internal/model"
)

// Storage domains.
const (
	DomainRaw      = "raw"
	DomainEnriched = "enriched"
)

const suffix = ".parquet"

// ObjectKey formats the object-store key for a partition.
func ObjectKey(domain string, k model.Key) string {
	return fmt.Sprintf("%s/%d/%s%s", domain, k.Year, k.Instrument, suffix)
}

// ParseObjectKey inverts ObjectKey.
func ParseObjectKey(key string) (domain string, k model.Key, err error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return "", model.Key{}, fmt.Errorf("malformed partition key %q", key)
	}
	if parts[0] != DomainRaw && parts[0] != DomainEnriched {
		return "", model.Key{}, fmt.Errorf("unknown domain in partition key %q", key)
	}

	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", model.Key{}, fmt.Errorf("bad year in partition key %q", key)
	}

	name, ok := strings.CutSuffix(parts[2], suffix)
	if !ok || name == "" {
		return "", model.Key{}, fmt.Errorf("malformed partition key %q", key)
	}

	return parts[0], model.Key{Instrument: name, Year: year}, nil
}
