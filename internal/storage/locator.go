package storage

import (
	"net/url"
	"strings"

	"github.com/teamvault/backend/pkg/logger"
)

// Resolution is the outcome of mapping a stored locator to an object key.
// Unresolvable locators are skipped by the store deleter but still eligible
// for metadata deletion; the orchestrator surfaces them as warnings.
type Resolution struct {
	Locator    string
	Key        string
	Resolvable bool
}

// KeyResolver converts the URL-like locator recorded on a File row back into
// the object-store key it was uploaded under.
type KeyResolver struct {
	bucket string
	hosts  map[string]bool
}

// NewKeyResolver recognizes the given endpoint hosts (host or host:port) as
// path-style object-store addresses for the given bucket.
func NewKeyResolver(bucket string, endpoints ...string) *KeyResolver {
	hosts := make(map[string]bool, len(endpoints))
	for _, endpoint := range endpoints {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint == "" {
			continue
		}
		hosts[endpoint] = true
		if host, _, found := strings.Cut(endpoint, ":"); found {
			hosts[host] = true
		}
	}
	return &KeyResolver{bucket: bucket, hosts: hosts}
}

// Resolve applies the resolution rules in order:
//  1. explicit object-store scheme (s3://bucket/key, minio://bucket/key):
//     the key is everything after the bucket segment;
//  2. a URL whose host is a virtual-hosted-style or path-style object-store
//     address: the key is the URL path without the leading slash (path-style
//     additionally drops the bucket segment);
//  3. anything else (CDN, custom domain) is unresolvable.
func (r *KeyResolver) Resolve(locator string) Resolution {
	parsed, err := url.Parse(strings.TrimSpace(locator))
	if err != nil || parsed.Host == "" {
		return r.unresolvable(locator)
	}

	switch parsed.Scheme {
	case "s3", "minio":
		key := strings.TrimPrefix(parsed.Path, "/")
		if key == "" {
			return r.unresolvable(locator)
		}
		return Resolution{Locator: locator, Key: key, Resolvable: true}
	case "http", "https":
	default:
		return r.unresolvable(locator)
	}

	host := parsed.Host
	path := strings.TrimPrefix(parsed.EscapedPath(), "/")

	if r.isVirtualHosted(host) {
		if path == "" {
			return r.unresolvable(locator)
		}
		key, err := url.PathUnescape(path)
		if err != nil {
			return r.unresolvable(locator)
		}
		return Resolution{Locator: locator, Key: key, Resolvable: true}
	}

	if r.isPathStyle(host) {
		// First path segment is the bucket; the key must not embed it.
		bucketSegment, key, found := strings.Cut(path, "/")
		if !found || key == "" || (r.bucket != "" && bucketSegment != r.bucket) {
			return r.unresolvable(locator)
		}
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			return r.unresolvable(locator)
		}
		return Resolution{Locator: locator, Key: unescaped, Resolvable: true}
	}

	return r.unresolvable(locator)
}

// ResolveAll maps a set of locators, partitioning into resolved keys and
// unresolvable locators.
func (r *KeyResolver) ResolveAll(locators []string) (keys []string, unresolvable []string) {
	for _, locator := range locators {
		res := r.Resolve(locator)
		if res.Resolvable {
			keys = append(keys, res.Key)
		} else {
			unresolvable = append(unresolvable, locator)
		}
	}
	return keys, unresolvable
}

func (r *KeyResolver) isVirtualHosted(host string) bool {
	if r.bucket == "" {
		return false
	}
	rest, ok := strings.CutPrefix(host, r.bucket+".")
	if !ok {
		return false
	}
	if r.hosts[rest] {
		return true
	}
	// bucket.s3.amazonaws.com, bucket.s3.<region>.amazonaws.com
	return strings.HasPrefix(rest, "s3.") && strings.HasSuffix(rest, ".amazonaws.com")
}

func (r *KeyResolver) isPathStyle(host string) bool {
	if r.hosts[host] {
		return true
	}
	// s3.amazonaws.com, s3.<region>.amazonaws.com
	return host == "s3.amazonaws.com" ||
		(strings.HasPrefix(host, "s3.") && strings.HasSuffix(host, ".amazonaws.com"))
}

func (r *KeyResolver) unresolvable(locator string) Resolution {
	logger.Warn("locator_unresolvable", map[string]interface{}{
		"locator": locator,
		"bucket":  r.bucket,
	})
	return Resolution{Locator: locator}
}
